package notifications

import "log"

const (
	KindBookingConfirmed = "booking_confirmed"
	KindBookingCancelled = "booking_cancelled"
	KindBookingExpired   = "booking_expired"
	KindLessonReminder   = "lesson_reminder"
	KindPayoutProcessed  = "payout_processed"
)

type Recipient struct {
	Name  string
	Email string
	Phone string
}

// Dispatcher is fire-and-forget: a failed notification is logged and dropped,
// never propagated to the transition that triggered it.
type Dispatcher interface {
	Notify(kind string, recipients []Recipient, payload map[string]string)
}

// Dispatch sends on a goroutine so callers never block on the side channel.
func Dispatch(d Dispatcher, kind string, recipients []Recipient, payload map[string]string) {
	if d == nil {
		log.Printf("⚠️ No notification dispatcher configured, dropping %s", kind)
		return
	}
	go d.Notify(kind, recipients, payload)
}
