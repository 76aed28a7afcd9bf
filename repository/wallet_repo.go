package repository

import (
	"context"
	"errors"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletOps are the writes available inside a locked wallet transaction.
// The settlement service does the balance math; this layer only guarantees
// the ledger append and the balance update commit or roll back together.
type WalletOps interface {
	HasEarningFor(appointmentID uuid.UUID) (bool, error)
	HasBankAccount(teacherID uuid.UUID) (bool, error)
	Append(txn *models.WalletTransaction) error
	Save(w *models.Wallet) error
}

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

type walletOps struct {
	tx *gorm.DB
}

func (o *walletOps) HasEarningFor(appointmentID uuid.UUID) (bool, error) {
	var count int64
	err := o.tx.Model(&models.WalletTransaction{}).
		Where("appointment_id = ? AND type = ?", appointmentID, models.TxnEarning).
		Count(&count).Error
	return count > 0, err
}

func (o *walletOps) HasBankAccount(teacherID uuid.UUID) (bool, error) {
	var count int64
	err := o.tx.Model(&models.BankAccount{}).
		Where("teacher_id = ?", teacherID).
		Count(&count).Error
	return count > 0, err
}

func (o *walletOps) Append(txn *models.WalletTransaction) error {
	if err := o.tx.Create(txn).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.ErrDuplicateEarning
		}
		return err
	}
	return nil
}

func (o *walletOps) Save(w *models.Wallet) error {
	return o.tx.Save(w).Error
}

// WithWalletForTeacher row-locks the teacher's wallet, creating it first if
// this is the teacher's first credit, and runs fn atomically against it.
// Concurrent credits and debits against one wallet serialize on this lock.
func (r *WalletRepository) WithWalletForTeacher(ctx context.Context, teacherID uuid.UUID, fn func(ops WalletOps, w *models.Wallet) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Wallet{TeacherID: teacherID}).Error; err != nil {
			return err
		}

		var wallet models.Wallet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&wallet, "teacher_id = ?", teacherID).Error; err != nil {
			return err
		}
		return fn(&walletOps{tx: tx}, &wallet)
	})
}

// WithWallet row-locks an existing wallet by id; payouts address wallets
// directly.
func (r *WalletRepository) WithWallet(ctx context.Context, walletID uuid.UUID, fn func(ops WalletOps, w *models.Wallet) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.Wallet
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&wallet, "id = ?", walletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrNotFound
			}
			return err
		}
		return fn(&walletOps{tx: tx}, &wallet)
	})
}

func (r *WalletRepository) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Preload("Teacher.User").
		Order("available_balance desc").
		Find(&wallets).Error
	return wallets, err
}

func (r *WalletRepository) ListTransactions(ctx context.Context, walletID uuid.UUID) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at asc").
		Find(&txns).Error
	return txns, err
}
