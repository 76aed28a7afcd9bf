package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is created lazily on a teacher's first earning credit.
// AvailableBalance must always equal the signed sum of the wallet's
// transactions; it is only ever updated together with a ledger append.
type Wallet struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID uuid.UUID `gorm:"not null;unique" json:"teacher_id"`

	AvailableBalance decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"available_balance"`
	PendingBalance   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"pending_balance"`
	TotalEarned      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_earned"`
	TotalWithdrawn   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_withdrawn"`

	Teacher Teacher `gorm:"foreignkey:TeacherID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}
