package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TxnEarning    = "EARNING"
	TxnWithdrawal = "WITHDRAWAL"
	TxnAdjustment = "ADJUSTMENT"
)

// WalletTransaction is an append-only ledger row. Amount is signed: earnings
// positive, withdrawals negative. BalanceAfter snapshots the wallet's
// available balance immediately after this entry was applied.
type WalletTransaction struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	WalletID uuid.UUID `gorm:"not null;index" json:"wallet_id"`
	Type     string    `gorm:"size:20;not null" json:"type"`

	Amount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"balance_after"`

	AppointmentID  *uuid.UUID `json:"appointment_id,omitempty"`
	BatchReference *string    `gorm:"size:100" json:"batch_reference,omitempty"`

	Wallet Wallet `gorm:"foreignkey:WalletID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
