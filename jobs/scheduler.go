package jobs

import (
	"context"
	"log"
	"time"

	"github.com/dersly/backend/models"
	"github.com/google/uuid"
)

const duePassBatchSize = 100

type jobStore interface {
	Due(ctx context.Context, now time.Time, limit int) ([]models.DeferredJob, error)
	MarkDone(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, msg string) error
}

type HandlerFunc func(ctx context.Context, job models.DeferredJob) error

// Scheduler executes persisted deferred jobs at-least-once. Jobs live in the
// database, so scheduled work survives process restarts; the cron-driven due
// pass is only the clock. A handler error leaves the job pending for a later
// pass (the store backs retries off and eventually parks repeat offenders),
// which is why every handler re-checks its precondition.
type Scheduler struct {
	store    jobStore
	handlers map[string]HandlerFunc
}

func NewScheduler(store jobStore) *Scheduler {
	return &Scheduler{
		store:    store,
		handlers: make(map[string]HandlerFunc),
	}
}

func (s *Scheduler) Register(kind string, handler HandlerFunc) {
	s.handlers[kind] = handler
}

func (s *Scheduler) RunDuePass() {
	ctx := context.Background()

	due, err := s.store.Due(ctx, time.Now(), duePassBatchSize)
	if err != nil {
		log.Printf("🔥 Deferred job due pass failed: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	log.Printf("Running job due pass: %d job(s)", len(due))
	for _, job := range due {
		handler, ok := s.handlers[job.Kind]
		if !ok {
			log.Printf("🔥 No handler registered for job kind %s, leaving job %s pending", job.Kind, job.ID)
			continue
		}

		if err := handler(ctx, job); err != nil {
			log.Printf("🔥 Job %s (%s) failed on attempt %d: %v", job.ID, job.Kind, job.Attempts, err)
			if err := s.store.MarkFailed(ctx, job.ID, err.Error()); err != nil {
				log.Printf("🔥 Could not record failure for job %s: %v", job.ID, err)
			}
			continue
		}

		if err := s.store.MarkDone(ctx, job.ID); err != nil {
			// The job will fire again; handlers are idempotent so the re-run
			// is harmless.
			log.Printf("🔥 Could not mark job %s done: %v", job.ID, err)
		}
	}
}
