package services

import (
	"context"
	"time"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/google/uuid"
)

type windowStore interface {
	WindowsForTeacher(ctx context.Context, teacherID uuid.UUID) ([]models.AvailabilityWindow, error)
	HasActiveAppointment(ctx context.Context, teacherID uuid.UUID, at time.Time) (bool, error)
}

// AvailabilityService decides whether a (teacher, start, duration) slot is
// bookable: the slot must sit inside a recurring or date-specific window and
// no non-terminal appointment may already occupy the instant.
type AvailabilityService struct {
	windows  windowStore
	location *time.Location
}

func NewAvailabilityService(windows windowStore, location *time.Location) *AvailabilityService {
	return &AvailabilityService{windows: windows, location: location}
}

func (s *AvailabilityService) CheckBookable(ctx context.Context, teacherID uuid.UUID, startsAt time.Time, durationMinutes int) error {
	windows, err := s.windows.WindowsForTeacher(ctx, teacherID)
	if err != nil {
		return err
	}

	if !s.matchesWindow(windows, startsAt, durationMinutes) {
		return apperrors.NewValidation("scheduled_at", "teacher is not available at the requested time")
	}

	taken, err := s.windows.HasActiveAppointment(ctx, teacherID, startsAt)
	if err != nil {
		return err
	}
	if taken {
		return apperrors.ErrSlotTaken
	}
	return nil
}

func (s *AvailabilityService) matchesWindow(windows []models.AvailabilityWindow, startsAt time.Time, durationMinutes int) bool {
	local := startsAt.In(s.location)
	startMinute := local.Hour()*60 + local.Minute()
	endMinute := startMinute + durationMinutes

	for _, w := range windows {
		if startMinute < w.StartMinute || endMinute > w.EndMinute {
			continue
		}
		if w.Recurring {
			if w.Weekday != nil && int(local.Weekday()) == *w.Weekday {
				return true
			}
			continue
		}
		if w.Date != nil {
			wy, wm, wd := w.Date.In(s.location).Date()
			ly, lm, ld := local.Date()
			if wy == ly && wm == lm && wd == ld {
				return true
			}
		}
	}
	return false
}
