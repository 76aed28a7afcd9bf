package meetings

import "time"

type Meeting struct {
	MeetingID string
	JoinURL   string
}

// Provider creates the video room for a confirmed lesson and tears it down on
// cancellation. Failures are logged by callers, never surfaced to students.
type Provider interface {
	CreateMeeting(subject string, start time.Time, durationMinutes int) (*Meeting, error)
	DeleteMeeting(meetingID string) error
}
