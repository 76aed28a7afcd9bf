package repository

import (
	"context"
	"time"

	"github.com/dersly/backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AvailabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

func (r *AvailabilityRepository) WindowsForTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.AvailabilityWindow, error) {
	var windows []models.AvailabilityWindow
	err := r.db.WithContext(ctx).
		Where("teacher_id = ?", teacherID).
		Find(&windows).Error
	return windows, err
}

// HasActiveAppointment is the advisory half of the conflict check; the
// partial unique index on appointments stays authoritative at insert time.
func (r *AvailabilityRepository) HasActiveAppointment(ctx context.Context, teacherID uuid.UUID, at time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("teacher_id = ? AND scheduled_at = ? AND status NOT IN ?", teacherID, at, models.TerminalStatuses).
		Count(&count).Error
	return count > 0, err
}
