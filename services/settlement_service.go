package services

import (
	"context"
	"time"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/dersly/backend/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type walletStore interface {
	WithWalletForTeacher(ctx context.Context, teacherID uuid.UUID, fn func(ops repository.WalletOps, w *models.Wallet) error) error
	WithWallet(ctx context.Context, walletID uuid.UUID, fn func(ops repository.WalletOps, w *models.Wallet) error) error
	ListWallets(ctx context.Context) ([]models.Wallet, error)
}

type earningsReader interface {
	MonthlyEarnings(ctx context.Context, from, to time.Time) ([]repository.TeacherEarningsRow, error)
}

// SettlementService owns the wallet ledger. Every balance change is an
// append-only WalletTransaction written atomically with the balance update;
// the wallet's available balance is always the signed sum of its ledger.
type SettlementService struct {
	wallets  walletStore
	earnings earningsReader
	location *time.Location
}

func NewSettlementService(wallets walletStore, earnings earningsReader, location *time.Location) *SettlementService {
	return &SettlementService{wallets: wallets, earnings: earnings, location: location}
}

// CreditEarning credits a teacher's wallet for one completed appointment.
// It is idempotent per appointment: a second credit attempt is rejected with
// ErrDuplicateEarning, both by the in-transaction check and by the partial
// unique index on EARNING rows.
func (s *SettlementService) CreditEarning(ctx context.Context, teacherID, appointmentID uuid.UUID, amount decimal.Decimal) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewValidation("amount", "credit amount must be positive")
	}

	var txn *models.WalletTransaction
	err := s.wallets.WithWalletForTeacher(ctx, teacherID, func(ops repository.WalletOps, w *models.Wallet) error {
		credited, err := ops.HasEarningFor(appointmentID)
		if err != nil {
			return err
		}
		if credited {
			return apperrors.ErrDuplicateEarning
		}

		balanceAfter := w.AvailableBalance.Add(amount)
		txn = &models.WalletTransaction{
			WalletID:      w.ID,
			Type:          models.TxnEarning,
			Amount:        amount,
			BalanceAfter:  balanceAfter,
			AppointmentID: &appointmentID,
		}
		if err := ops.Append(txn); err != nil {
			return err
		}

		w.AvailableBalance = balanceAfter
		w.TotalEarned = w.TotalEarned.Add(amount)
		return ops.Save(w)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Debit withdraws from a wallet for a payout. The balance check runs against
// the row-locked wallet, so two concurrent debits cannot both pass on a stale
// balance.
func (s *SettlementService) Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, batchReference string) (*models.WalletTransaction, error) {
	if !amount.IsPositive() {
		return nil, apperrors.NewValidation("amount", "debit amount must be positive")
	}

	var txn *models.WalletTransaction
	err := s.wallets.WithWallet(ctx, walletID, func(ops repository.WalletOps, w *models.Wallet) error {
		hasAccount, err := ops.HasBankAccount(w.TeacherID)
		if err != nil {
			return err
		}
		if !hasAccount {
			return apperrors.ErrMissingPayoutDetails
		}
		if amount.GreaterThan(w.AvailableBalance) {
			return apperrors.ErrInsufficientBalance
		}

		balanceAfter := w.AvailableBalance.Sub(amount)
		txn = &models.WalletTransaction{
			WalletID:     w.ID,
			Type:         models.TxnWithdrawal,
			Amount:       amount.Neg(),
			BalanceAfter: balanceAfter,
		}
		if batchReference != "" {
			txn.BatchReference = &batchReference
		}
		if err := ops.Append(txn); err != nil {
			return err
		}

		w.AvailableBalance = balanceAfter
		w.TotalWithdrawn = w.TotalWithdrawn.Add(amount)
		return ops.Save(w)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// MonthlyReport aggregates COMPLETED+PAID appointments in the given month
// from the amounts stored at booking time. This is a read-only projection;
// the ledger stays authoritative for balances.
func (s *SettlementService) MonthlyReport(ctx context.Context, year, month int) ([]repository.TeacherEarningsRow, error) {
	if month < 1 || month > 12 {
		return nil, apperrors.NewValidation("month", "month must be between 1 and 12")
	}
	if year < 2000 || year > 2200 {
		return nil, apperrors.NewValidation("year", "year out of range")
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.location)
	to := from.AddDate(0, 1, 0)
	return s.earnings.MonthlyEarnings(ctx, from, to)
}

func (s *SettlementService) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	return s.wallets.ListWallets(ctx)
}
