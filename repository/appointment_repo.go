package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const uniqueViolation = "23505"

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

// Create inserts the appointment and arms any jobs in one transaction. The
// partial unique index on (teacher_id, scheduled_at) is the authoritative
// double-booking guard; a violation on it surfaces as ErrSlotTaken, a
// violation on the order code as ErrDuplicateOrder so the caller can
// regenerate.
func (r *AppointmentRepository) Create(ctx context.Context, appt *models.Appointment, jobs ...*models.DeferredJob) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(appt).Error; err != nil {
			return err
		}
		for _, job := range jobs {
			job.AppointmentID = appt.ID
			if err := scheduleJob(tx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			switch pgErr.ConstraintName {
			case "idx_appointments_active_slot":
				return apperrors.ErrSlotTaken
			default:
				return apperrors.ErrDuplicateOrder
			}
		}
		return err
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Teacher.User").
		Preload("Subject").
		First(&appt, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &appt, nil
}

// Transition applies updates only while the persisted status still equals
// from, arming jobs in the same transaction. The second return value reports
// whether this caller won the write; losing is not an error here — concurrent
// transitions are expected and the caller decides how to react.
func (r *AppointmentRepository) Transition(ctx context.Context, id uuid.UUID, from string, updates map[string]interface{}, jobs ...*models.DeferredJob) (*models.Appointment, bool, error) {
	won := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Appointment{}).
			Where("id = ? AND status = ?", id, from).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		won = true
		for _, job := range jobs {
			job.AppointmentID = id
			if err := scheduleJob(tx, job); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	appt, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, won, err
	}
	return appt, won, nil
}

// UpdateFields writes non-lifecycle fields (meeting link, receipt URL,
// feedback) without a status precondition.
func (r *AppointmentRepository) UpdateFields(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Appointment{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *AppointmentRepository) ListByStudent(ctx context.Context, studentID uuid.UUID) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Teacher.User").
		Preload("Subject").
		Where("student_id = ?", studentID).
		Order("scheduled_at desc").
		Find(&appts).Error
	return appts, err
}

func (r *AppointmentRepository) ListByTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Subject").
		Where("teacher_id = ?", teacherID).
		Order("scheduled_at desc").
		Find(&appts).Error
	return appts, err
}

// TeacherEarningsRow is one line of the monthly settlement report: stored
// appointment amounts re-aggregated as written at booking time, never
// recomputed from current rates.
type TeacherEarningsRow struct {
	TeacherID        uuid.UUID       `json:"teacher_id"`
	TeacherName      string          `json:"teacher_name"`
	CompletedLessons int             `json:"completed_lessons"`
	GrossTotal       decimal.Decimal `json:"gross_total"`
	FeeTotal         decimal.Decimal `json:"fee_total"`
	EarningTotal     decimal.Decimal `json:"earning_total"`
	WalletBalance    decimal.Decimal `json:"wallet_balance"`
}

func (r *AppointmentRepository) MonthlyEarnings(ctx context.Context, from, to time.Time) ([]TeacherEarningsRow, error) {
	var rows []TeacherEarningsRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT a.teacher_id,
		       u.full_name AS teacher_name,
		       COUNT(*) AS completed_lessons,
		       SUM(a.gross_amount) AS gross_total,
		       SUM(a.platform_fee) AS fee_total,
		       SUM(a.teacher_earning) AS earning_total,
		       COALESCE(w.available_balance, 0) AS wallet_balance
		FROM appointments a
		JOIN users u ON u.id = a.teacher_id
		LEFT JOIN wallets w ON w.teacher_id = a.teacher_id
		WHERE a.status = ? AND a.payment_status = ?
		  AND a.scheduled_at >= ? AND a.scheduled_at < ?
		GROUP BY a.teacher_id, u.full_name, w.available_balance
		ORDER BY earning_total DESC`,
		models.AppointmentCompleted, models.PaymentPaid, from, to,
	).Scan(&rows).Error
	return rows, err
}
