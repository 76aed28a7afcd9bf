package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TeacherStatusPending  = "pending"
	TeacherStatusApproved = "approved"
	TeacherStatusRejected = "rejected"
)

type Teacher struct {
	UserID            uuid.UUID       `gorm:"primary_key" json:"user_id"`
	BranchID          uuid.UUID       `gorm:"not null" json:"branch_id"`
	Headline          *string         `gorm:"size:255" json:"headline"`
	Status            string          `gorm:"size:20;not null;default:'pending'" json:"status"`
	HourlyRate        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"hourly_rate"`
	CommissionPercent decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"-"`

	User   User   `gorm:"foreignkey:UserID" json:"user"`
	Branch Branch `gorm:"foreignkey:BranchID" json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// BankAccount is required before any payout can be made to a teacher.
type BankAccount struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID  uuid.UUID `gorm:"not null;unique" json:"teacher_id"`
	HolderName string    `gorm:"size:255;not null" json:"holder_name"`
	IBAN       string    `gorm:"size:34;not null" json:"iban"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}
