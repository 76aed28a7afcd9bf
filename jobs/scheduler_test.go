package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dersly/backend/models"
	"github.com/google/uuid"
)

type stubJobStore struct {
	due    []models.DeferredJob
	dueErr error
	done   []uuid.UUID
	failed []uuid.UUID
}

func (s *stubJobStore) Due(_ context.Context, _ time.Time, _ int) ([]models.DeferredJob, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	due := s.due
	s.due = nil
	return due, nil
}

func (s *stubJobStore) MarkDone(_ context.Context, id uuid.UUID) error {
	s.done = append(s.done, id)
	return nil
}

func (s *stubJobStore) MarkFailed(_ context.Context, id uuid.UUID, _ string) error {
	s.failed = append(s.failed, id)
	return nil
}

func pendingJob(kind string) models.DeferredJob {
	return models.DeferredJob{
		ID:            uuid.New(),
		Kind:          kind,
		AppointmentID: uuid.New(),
		RunAt:         time.Now().Add(-time.Minute),
		Status:        models.JobPending,
	}
}

func TestRunDuePassMarksHandledJobsDone(t *testing.T) {
	store := &stubJobStore{}
	job := pendingJob(models.JobAutoComplete)
	store.due = []models.DeferredJob{job}

	var handled int
	scheduler := NewScheduler(store)
	scheduler.Register(models.JobAutoComplete, func(_ context.Context, _ models.DeferredJob) error {
		handled++
		return nil
	})

	scheduler.RunDuePass()

	if handled != 1 {
		t.Errorf("handler ran %d times, want 1", handled)
	}
	if len(store.done) != 1 || store.done[0] != job.ID {
		t.Error("job not marked done")
	}
	if len(store.failed) != 0 {
		t.Error("job marked failed unexpectedly")
	}

	// Nothing due on the next pass.
	scheduler.RunDuePass()
	if handled != 1 {
		t.Errorf("drained job re-fired, handler ran %d times", handled)
	}
}

func TestRunDuePassFailedHandlerLeavesJobPending(t *testing.T) {
	store := &stubJobStore{}
	job := pendingJob(models.JobExpireBankTransfer)
	store.due = []models.DeferredJob{job}

	scheduler := NewScheduler(store)
	scheduler.Register(models.JobExpireBankTransfer, func(_ context.Context, _ models.DeferredJob) error {
		return errors.New("db unavailable")
	})

	scheduler.RunDuePass()

	if len(store.done) != 0 {
		t.Error("failed job marked done")
	}
	if len(store.failed) != 1 || store.failed[0] != job.ID {
		t.Error("failure not recorded for retry")
	}
}

func TestRunDuePassSkipsUnknownKind(t *testing.T) {
	store := &stubJobStore{}
	store.due = []models.DeferredJob{pendingJob("SOMETHING_ELSE")}

	NewScheduler(store).RunDuePass()

	if len(store.done) != 0 || len(store.failed) != 0 {
		t.Error("unhandled job must stay pending untouched")
	}
}

func TestRunDuePassContinuesAfterFailure(t *testing.T) {
	store := &stubJobStore{}
	failing := pendingJob(models.JobReminder)
	ok := pendingJob(models.JobReminder)
	store.due = []models.DeferredJob{failing, ok}

	scheduler := NewScheduler(store)
	scheduler.Register(models.JobReminder, func(_ context.Context, job models.DeferredJob) error {
		if job.ID == failing.ID {
			return errors.New("smtp timeout")
		}
		return nil
	})

	scheduler.RunDuePass()

	if len(store.failed) != 1 || store.failed[0] != failing.ID {
		t.Error("first job's failure not recorded")
	}
	if len(store.done) != 1 || store.done[0] != ok.ID {
		t.Error("second job did not complete after the first failed")
	}
}

type recordingLifecycle struct {
	expired   []uuid.UUID
	completed []uuid.UUID
	reminders []string
}

func (l *recordingLifecycle) ExpireBankTransfer(_ context.Context, id uuid.UUID) error {
	l.expired = append(l.expired, id)
	return nil
}

func (l *recordingLifecycle) AutoComplete(_ context.Context, id uuid.UUID) error {
	l.completed = append(l.completed, id)
	return nil
}

func (l *recordingLifecycle) SendReminder(_ context.Context, _ uuid.UUID, variant string) error {
	l.reminders = append(l.reminders, variant)
	return nil
}

func TestAppointmentHandlersRouteByKind(t *testing.T) {
	store := &stubJobStore{}
	expire := pendingJob(models.JobExpireBankTransfer)
	reminder := pendingJob(models.JobReminder)
	reminder.Payload = models.ReminderOneHourBefore
	auto := pendingJob(models.JobAutoComplete)
	store.due = []models.DeferredJob{expire, reminder, auto}

	lifecycle := &recordingLifecycle{}
	scheduler := NewScheduler(store)
	RegisterAppointmentHandlers(scheduler, lifecycle)

	scheduler.RunDuePass()

	if len(lifecycle.expired) != 1 || lifecycle.expired[0] != expire.AppointmentID {
		t.Error("expire job not routed")
	}
	if len(lifecycle.reminders) != 1 || lifecycle.reminders[0] != models.ReminderOneHourBefore {
		t.Error("reminder variant not passed through")
	}
	if len(lifecycle.completed) != 1 || lifecycle.completed[0] != auto.AppointmentID {
		t.Error("auto-complete job not routed")
	}
	if len(store.done) != 3 {
		t.Errorf("jobs marked done = %d, want 3", len(store.done))
	}
}
