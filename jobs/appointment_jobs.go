package jobs

import (
	"context"

	"github.com/dersly/backend/models"
	"github.com/google/uuid"
)

type appointmentLifecycle interface {
	ExpireBankTransfer(ctx context.Context, id uuid.UUID) error
	AutoComplete(ctx context.Context, id uuid.UUID) error
	SendReminder(ctx context.Context, id uuid.UUID, variant string) error
}

// RegisterAppointmentHandlers binds the three appointment job kinds. Each
// handler delegates to a lifecycle method that re-fetches current state and
// no-ops when the appointment has already moved on.
func RegisterAppointmentHandlers(s *Scheduler, lifecycle appointmentLifecycle) {
	s.Register(models.JobExpireBankTransfer, func(ctx context.Context, job models.DeferredJob) error {
		return lifecycle.ExpireBankTransfer(ctx, job.AppointmentID)
	})
	s.Register(models.JobReminder, func(ctx context.Context, job models.DeferredJob) error {
		return lifecycle.SendReminder(ctx, job.AppointmentID, job.Payload)
	})
	s.Register(models.JobAutoComplete, func(ctx context.Context, job models.DeferredJob) error {
		return lifecycle.AutoComplete(ctx, job.AppointmentID)
	})
}
