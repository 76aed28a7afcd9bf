package payments

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	config "github.com/dersly/backend/configs"
	"github.com/shopspring/decimal"
)

// CheckoutClient talks to the hosted-checkout provider's REST API. The
// provider renders its own card form; we only create sessions, poll results
// and issue refunds.
type CheckoutClient struct {
	apiBase   string
	apiKey    string
	secretKey string
	client    *http.Client
}

func NewCheckoutClient() *CheckoutClient {
	return &CheckoutClient{
		apiBase:   config.Config("CHECKOUT_API_BASE_URL"),
		apiKey:    config.Config("CHECKOUT_API_KEY"),
		secretKey: config.Config("CHECKOUT_SECRET_KEY"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

type initializeResponse struct {
	Status              string `json:"status"`
	CheckoutFormContent string `json:"checkoutFormContent"`
	Token               string `json:"token"`
	ErrorMessage        string `json:"errorMessage"`
}

func (c *CheckoutClient) InitializePayment(order CheckoutOrder) (*CheckoutSession, error) {
	payload := map[string]interface{}{
		"conversationId": order.ConversationID,
		"basketId":       order.OrderCode,
		"price":          order.Amount.StringFixed(2),
		"paidPrice":      order.Amount.StringFixed(2),
		"buyer": map[string]string{
			"name":  order.BuyerName,
			"email": order.BuyerEmail,
		},
	}

	var resp initializeResponse
	if err := c.post("/payment/checkoutform/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status != ResultSuccess {
		return nil, fmt.Errorf("checkout initialize rejected: %s", resp.ErrorMessage)
	}

	return &CheckoutSession{
		CheckoutFormContent: resp.CheckoutFormContent,
		Token:               resp.Token,
	}, nil
}

type retrieveResponse struct {
	Status         string `json:"status"`
	PaymentStatus  string `json:"paymentStatus"`
	PaymentID      string `json:"paymentId"`
	ConversationID string `json:"conversationId"`
	ErrorMessage   string `json:"errorMessage"`
}

func (c *CheckoutClient) RetrieveResult(token string) (*PaymentResult, error) {
	payload := map[string]interface{}{"token": token}

	var resp retrieveResponse
	if err := c.post("/payment/checkoutform/retrieve", payload, &resp); err != nil {
		return nil, err
	}

	status := resp.Status
	if status == ResultSuccess && resp.PaymentStatus != "SUCCESS" {
		status = "failure"
	}

	return &PaymentResult{
		Status:         status,
		PaymentID:      resp.PaymentID,
		ConversationID: resp.ConversationID,
	}, nil
}

func (c *CheckoutClient) Refund(paymentID string, amount decimal.Decimal) error {
	payload := map[string]interface{}{
		"paymentTransactionId": paymentID,
		"price":                amount.StringFixed(2),
	}

	var resp initializeResponse
	if err := c.post("/payment/refund", payload, &resp); err != nil {
		return err
	}
	if resp.Status != ResultSuccess {
		return fmt.Errorf("refund rejected: %s", resp.ErrorMessage)
	}
	return nil
}

func (c *CheckoutClient) post(path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %v", err)
	}

	req, err := http.NewRequest("POST", c.apiBase+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", c.apiKey, c.secretKey))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call checkout provider: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("checkout provider returned status %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
