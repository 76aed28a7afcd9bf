package repository

import (
	"context"
	"errors"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DirectoryRepository reads the user/teacher/subject records the lifecycle
// engine validates against. Profile CRUD itself lives outside this subsystem.
type DirectoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) GetTeacher(ctx context.Context, userID uuid.UUID) (*models.Teacher, error) {
	var teacher models.Teacher
	err := r.db.WithContext(ctx).
		Preload("User").
		First(&teacher, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &teacher, nil
}

func (r *DirectoryRepository) GetSubject(ctx context.Context, id uuid.UUID) (*models.Subject, error) {
	var subject models.Subject
	err := r.db.WithContext(ctx).First(&subject, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &subject, nil
}

func (r *DirectoryRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// WalletOwner resolves the user behind a wallet for payout notifications.
func (r *DirectoryRepository) WalletOwner(ctx context.Context, walletID uuid.UUID) (*models.User, error) {
	var wallet models.Wallet
	err := r.db.WithContext(ctx).First(&wallet, "id = ?", walletID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return r.GetUser(ctx, wallet.TeacherID)
}
