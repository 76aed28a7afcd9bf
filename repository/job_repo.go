package repository

import (
	"context"
	"time"

	"github.com/dersly/backend/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// scheduleJob is shared with the appointment repository so a job can be armed
// inside the same transaction as the transition that requires it. The
// (kind, appointment, payload) unique key makes re-arming a no-op.
func scheduleJob(tx *gorm.DB, job *models.DeferredJob) error {
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(job).Error
}

func (r *JobRepository) Schedule(ctx context.Context, job *models.DeferredJob) error {
	return scheduleJob(r.db.WithContext(ctx), job)
}

// Due claims pending jobs whose run time has arrived. SKIP LOCKED keeps
// concurrent due passes from claiming the same rows, but only while the
// claim transaction is open; a pass that crashes mid-handler re-delivers
// on the next sweep, which is why handlers must stay idempotent.
func (r *JobRepository) Due(ctx context.Context, now time.Time, limit int) ([]models.DeferredJob, error) {
	var jobs []models.DeferredJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_at <= ?", models.JobPending, now).
			Order("run_at asc").
			Limit(limit).
			Find(&jobs).Error; err != nil {
			return err
		}
		for i := range jobs {
			jobs[i].Attempts++
			if err := tx.Model(&models.DeferredJob{}).
				Where("id = ?", jobs[i].ID).
				Update("attempts", jobs[i].Attempts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return jobs, err
}

func (r *JobRepository) MarkDone(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&models.DeferredJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.JobDone,
			"executed_at": now,
			"last_error":  nil,
		}).Error
}

const maxJobAttempts = 10

// retryBackoff doubles per failed attempt, capped at an hour.
func retryBackoff(attempts int) time.Duration {
	backoff := time.Minute
	for i := 1; i < attempts && backoff < time.Hour; i++ {
		backoff *= 2
	}
	if backoff > time.Hour {
		backoff = time.Hour
	}
	return backoff
}

// MarkFailed leaves the job pending so a later due pass retries it, pushing
// run_at out with backoff. At-least-once delivery relies on this; handlers
// stay idempotent. A job that exhausts maxJobAttempts is parked as failed
// for manual inspection instead of retrying forever.
func (r *JobRepository) MarkFailed(ctx context.Context, id uuid.UUID, msg string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.DeferredJob
		if err := tx.First(&job, "id = ?", id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"last_error": msg}
		if job.Attempts >= maxJobAttempts {
			updates["status"] = models.JobFailed
		} else {
			updates["run_at"] = time.Now().Add(retryBackoff(job.Attempts))
		}
		return tx.Model(&models.DeferredJob{}).
			Where("id = ?", id).
			Updates(updates).Error
	})
}
