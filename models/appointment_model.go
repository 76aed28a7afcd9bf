package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AppointmentPendingPayment = "PENDING_PAYMENT"
	AppointmentConfirmed      = "CONFIRMED"
	AppointmentInProgress     = "IN_PROGRESS"
	AppointmentCompleted      = "COMPLETED"
	AppointmentCancelled      = "CANCELLED"
	AppointmentExpired        = "EXPIRED"
	AppointmentNoShow         = "NO_SHOW"
)

const (
	PaymentMethodCreditCard   = "CREDIT_CARD"
	PaymentMethodBankTransfer = "BANK_TRANSFER"
)

const (
	PaymentPending   = "PENDING"
	PaymentPaid      = "PAID"
	PaymentFailed    = "FAILED"
	PaymentCancelled = "CANCELLED"
	PaymentRefunded  = "REFUNDED"
)

// TerminalStatuses are appointment states with no outgoing transition. They
// do not count as slot occupancy either.
var TerminalStatuses = []string{
	AppointmentCompleted,
	AppointmentCancelled,
	AppointmentExpired,
	AppointmentNoShow,
}

func IsTerminalStatus(status string) bool {
	for _, s := range TerminalStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	OrderCode string    `gorm:"size:20;not null;unique" json:"order_code"`

	StudentID uuid.UUID `gorm:"not null;index" json:"student_id"`
	TeacherID uuid.UUID `gorm:"not null;index" json:"teacher_id"`
	SubjectID uuid.UUID `gorm:"not null" json:"subject_id"`

	ScheduledAt     time.Time `gorm:"not null" json:"scheduled_at"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`

	Status        string `gorm:"size:20;not null;default:'PENDING_PAYMENT'" json:"status"`
	PaymentMethod string `gorm:"size:20;not null" json:"payment_method"`
	PaymentStatus string `gorm:"size:20;not null;default:'PENDING'" json:"payment_status"`

	GrossAmount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"gross_amount"`
	PlatformFee    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"platform_fee"`
	TeacherEarning decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"teacher_earning"`

	// Set only for bank transfers; payment must arrive before this instant.
	PaymentDeadline *time.Time `json:"payment_deadline,omitempty"`
	ReceiptURL      *string    `gorm:"size:512" json:"receipt_url,omitempty"`

	GatewayPaymentID *string `gorm:"size:255" json:"-"`

	MeetingID *string `gorm:"size:255" json:"-"`
	JoinURL   *string `gorm:"size:512" json:"join_url,omitempty"`

	Note               *string    `gorm:"type:text" json:"note,omitempty"`
	CancelledBy        *uuid.UUID `json:"cancelled_by,omitempty"`
	CancellationReason *string    `gorm:"type:text" json:"cancellation_reason,omitempty"`
	NoShow             bool       `gorm:"not null;default:false" json:"no_show"`
	NoShowNotes        *string    `gorm:"type:text" json:"no_show_notes,omitempty"`
	TeacherFeedback    *string    `gorm:"type:text" json:"teacher_feedback,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`

	Student User    `gorm:"foreignkey:StudentID" json:"student,omitempty"`
	Teacher Teacher `gorm:"foreignkey:TeacherID" json:"teacher,omitempty"`
	Subject Subject `gorm:"foreignkey:SubjectID" json:"subject,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
