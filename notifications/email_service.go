package notifications

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	config "github.com/dersly/backend/configs"
)

type EmailDispatcher struct {
	APIKey      string
	SenderEmail string
	SenderName  string
	client      *http.Client
}

// NewEmailDispatcher returns nil when the email credentials are missing so
// the caller can run with notifications disabled.
func NewEmailDispatcher() *EmailDispatcher {
	apiKey := config.Config("BREVO_API_KEY")
	senderEmail := config.Config("EMAIL_SENDER")
	senderName := config.Config("EMAIL_SENDER_NAME")

	if apiKey == "" || senderEmail == "" || senderName == "" {
		log.Println("⚠️ Email service not configured. Missing API Key, Sender Email, or Sender Name.")
		return nil
	}

	log.Println("✅ Email service initialized successfully.")
	return &EmailDispatcher{
		APIKey:      apiKey,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *EmailDispatcher) Notify(kind string, recipients []Recipient, payload map[string]string) {
	subject, body := renderEmail(kind, payload)
	for _, r := range recipients {
		if err := s.send(r.Email, r.Name, subject, body); err != nil {
			log.Printf("🔥 Failed to send %s email to %s: %v", kind, r.Email, err)
			continue
		}
		log.Printf("✅ %s email sent to %s", kind, r.Email)
	}
}

func renderEmail(kind string, payload map[string]string) (subject, body string) {
	switch kind {
	case KindBookingConfirmed:
		return "Your Lesson is Confirmed!",
			fmt.Sprintf("<h1>Lesson Confirmed</h1><p>Your lesson %s on %s is confirmed.</p><p><b>Meeting Link:</b> <a href='%s'>Join Lesson</a></p>",
				payload["order_code"], payload["scheduled_at"], payload["join_url"])
	case KindBookingCancelled:
		return "Your Lesson Has Been Cancelled",
			fmt.Sprintf("<h1>Lesson Cancelled</h1><p>Lesson %s has been cancelled.</p><p>%s</p>",
				payload["order_code"], payload["reason"])
	case KindBookingExpired:
		return "Your Booking Has Expired",
			fmt.Sprintf("<h1>Booking Expired</h1><p>We did not receive the bank transfer for booking %s in time, so it has been released.</p>",
				payload["order_code"])
	case KindLessonReminder:
		return "Reminder: Your Lesson is Coming Up!",
			fmt.Sprintf("<h1>Lesson Reminder</h1><p>Your lesson is scheduled for %s.</p><p><b>Meeting Link:</b> <a href='%s'>Join Lesson</a></p>",
				payload["scheduled_at"], payload["join_url"])
	case KindPayoutProcessed:
		return "Your Payout Has Been Processed",
			fmt.Sprintf("<h1>Payout Processed</h1><p>Your payout of %s has been sent to your bank account.</p>",
				payload["amount"])
	}
	return "Notification", "<p>You have a new notification.</p>"
}

type brevoPayload struct {
	Sender      map[string]string   `json:"sender"`
	To          []map[string]string `json:"to"`
	Subject     string              `json:"subject"`
	HTMLContent string              `json:"htmlContent"`
}

func (s *EmailDispatcher) send(toEmail, toName, subject, htmlContent string) error {
	url := "https://api.brevo.com/v3/smtp/email"

	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	recipientName := toName
	if recipientName == "" {
		recipientName = toEmail[:strings.Index(toEmail, "@")]
	}

	payload := brevoPayload{
		Sender:      map[string]string{"name": s.SenderName, "email": s.SenderEmail},
		To:          []map[string]string{{"email": toEmail, "name": recipientName}},
		Subject:     subject,
		HTMLContent: htmlContent,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", s.APIKey)
	req.Header.Set("content-type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to send email via Brevo: %s", string(bodyBytes))
	}

	return nil
}
