package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobExpireBankTransfer = "EXPIRE_BANK_TRANSFER"
	JobReminder           = "REMINDER"
	JobAutoComplete       = "AUTO_COMPLETE"
)

const (
	ReminderMorningOf     = "morning_of"
	ReminderOneHourBefore = "one_hour_before"
)

const (
	JobPending = "pending"
	JobDone    = "done"
	JobFailed  = "failed"
)

// DeferredJob is a persisted unit of work executed at or after RunAt by the
// scheduler's due pass. The (kind, appointment, payload) key makes arming
// idempotent; handlers must tolerate firing more than once.
type DeferredJob struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Kind          string    `gorm:"size:30;not null;uniqueIndex:idx_jobs_identity" json:"kind"`
	AppointmentID uuid.UUID `gorm:"not null;uniqueIndex:idx_jobs_identity" json:"appointment_id"`
	Payload       string    `gorm:"size:50;not null;default:'';uniqueIndex:idx_jobs_identity" json:"payload"`

	RunAt      time.Time  `gorm:"not null;index" json:"run_at"`
	Status     string     `gorm:"size:10;not null;default:'pending';index" json:"status"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	LastError  *string    `gorm:"type:text" json:"last_error,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
