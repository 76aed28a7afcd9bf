package services

import (
	"context"
	"log"

	"github.com/dersly/backend/models"
	"github.com/dersly/backend/notifications"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type walletDebitor interface {
	Debit(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, batchReference string) (*models.WalletTransaction, error)
}

type walletOwnerReader interface {
	WalletOwner(ctx context.Context, walletID uuid.UUID) (*models.User, error)
}

type PayoutItem struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
}

type PayoutResult struct {
	TransactionID uuid.UUID       `json:"transaction_id"`
	WalletID      uuid.UUID       `json:"wallet_id"`
	Amount        decimal.Decimal `json:"amount"`
}

type FailedPayout struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Amount   decimal.Decimal `json:"amount"`
	Reason   string          `json:"reason"`
}

// BulkPayoutSummary reports a best-effort batch: TotalAmount covers only the
// items that went through.
type BulkPayoutSummary struct {
	Successful  []PayoutResult  `json:"successful"`
	Failed      []FailedPayout  `json:"failed"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PayoutService turns admin withdrawal decisions into ledger debits. Bulk
// processing is intentionally not transactional across items: one wallet's
// insufficient balance must not abort its siblings.
type PayoutService struct {
	wallets   walletDebitor
	directory walletOwnerReader
	notifier  notifications.Dispatcher
}

func NewPayoutService(wallets walletDebitor, directory walletOwnerReader, notifier notifications.Dispatcher) *PayoutService {
	return &PayoutService{wallets: wallets, directory: directory, notifier: notifier}
}

func (s *PayoutService) ProcessPayout(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal, actorID uuid.UUID, reference string) (*PayoutResult, error) {
	txn, err := s.wallets.Debit(ctx, walletID, amount, reference)
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Payout of %s from wallet %s processed by admin %s", amount.StringFixed(2), walletID, actorID)
	s.notifyPayout(ctx, walletID, amount)

	return &PayoutResult{
		TransactionID: txn.ID,
		WalletID:      walletID,
		Amount:        amount,
	}, nil
}

// ProcessBulkPayout debits each item in its own storage transaction and
// collects per-item outcomes. Partial completion is the designed result of a
// batch, not a failure mode.
func (s *PayoutService) ProcessBulkPayout(ctx context.Context, items []PayoutItem, actorID uuid.UUID, batchReference string) (*BulkPayoutSummary, error) {
	summary := &BulkPayoutSummary{
		Successful:  []PayoutResult{},
		Failed:      []FailedPayout{},
		TotalAmount: decimal.Zero,
	}

	for _, item := range items {
		txn, err := s.wallets.Debit(ctx, item.WalletID, item.Amount, batchReference)
		if err != nil {
			summary.Failed = append(summary.Failed, FailedPayout{
				WalletID: item.WalletID,
				Amount:   item.Amount,
				Reason:   err.Error(),
			})
			continue
		}

		summary.Successful = append(summary.Successful, PayoutResult{
			TransactionID: txn.ID,
			WalletID:      item.WalletID,
			Amount:        item.Amount,
		})
		summary.TotalAmount = summary.TotalAmount.Add(item.Amount)
		s.notifyPayout(ctx, item.WalletID, item.Amount)
	}

	log.Printf("Bulk payout %s by admin %s: %d successful, %d failed",
		batchReference, actorID, len(summary.Successful), len(summary.Failed))
	return summary, nil
}

func (s *PayoutService) notifyPayout(ctx context.Context, walletID uuid.UUID, amount decimal.Decimal) {
	owner, err := s.directory.WalletOwner(ctx, walletID)
	if err != nil {
		log.Printf("⚠️ Could not resolve owner of wallet %s for payout notification: %v", walletID, err)
		return
	}
	notifications.Dispatch(s.notifier, notifications.KindPayoutProcessed,
		[]notifications.Recipient{{Name: owner.FullName, Email: owner.Email}},
		map[string]string{"amount": amount.StringFixed(2)},
	)
}
