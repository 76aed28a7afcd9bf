package services

import (
	"context"
	"testing"
	"time"

	"github.com/dersly/backend/apperrors"
	"github.com/dersly/backend/models"
	"github.com/google/uuid"
)

type stubWindowStore struct {
	windows []models.AvailabilityWindow
	taken   bool
}

func (s *stubWindowStore) WindowsForTeacher(_ context.Context, _ uuid.UUID) ([]models.AvailabilityWindow, error) {
	return s.windows, nil
}

func (s *stubWindowStore) HasActiveAppointment(_ context.Context, _ uuid.UUID, _ time.Time) (bool, error) {
	return s.taken, nil
}

func intPtr(v int) *int              { return &v }
func datePtr(v time.Time) *time.Time { return &v }

func TestCheckBookableRecurringWindow(t *testing.T) {
	// Tuesday 10:00-14:00 weekly
	store := &stubWindowStore{windows: []models.AvailabilityWindow{
		{Recurring: true, Weekday: intPtr(2), StartMinute: 600, EndMinute: 840},
	}}
	svc := NewAvailabilityService(store, time.UTC)

	// 2026-09-01 is a Tuesday
	tuesday := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)

	if err := svc.CheckBookable(context.Background(), uuid.New(), tuesday, 60); err != nil {
		t.Errorf("slot inside recurring window rejected: %v", err)
	}

	wednesday := tuesday.AddDate(0, 0, 1)
	if err := svc.CheckBookable(context.Background(), uuid.New(), wednesday, 60); !apperrors.IsValidation(err) {
		t.Errorf("slot on wrong weekday accepted: %v", err)
	}
}

func TestCheckBookableRangeContainment(t *testing.T) {
	store := &stubWindowStore{windows: []models.AvailabilityWindow{
		{Recurring: true, Weekday: intPtr(2), StartMinute: 600, EndMinute: 720}, // 10:00-12:00
	}}
	svc := NewAvailabilityService(store, time.UTC)

	tuesday := time.Date(2026, 9, 1, 11, 30, 0, 0, time.UTC)

	// 11:30 + 60min overruns the 12:00 window end
	if err := svc.CheckBookable(context.Background(), uuid.New(), tuesday, 60); !apperrors.IsValidation(err) {
		t.Errorf("overrunning slot accepted: %v", err)
	}
	if err := svc.CheckBookable(context.Background(), uuid.New(), tuesday, 30); err != nil {
		t.Errorf("exactly-fitting slot rejected: %v", err)
	}
}

func TestCheckBookableSpecificDateWindow(t *testing.T) {
	day := time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC)
	store := &stubWindowStore{windows: []models.AvailabilityWindow{
		{Recurring: false, Date: datePtr(day), StartMinute: 540, EndMinute: 720},
	}}
	svc := NewAvailabilityService(store, time.UTC)

	onDay := time.Date(2026, 9, 5, 10, 0, 0, 0, time.UTC)
	if err := svc.CheckBookable(context.Background(), uuid.New(), onDay, 90); err != nil {
		t.Errorf("slot inside date window rejected: %v", err)
	}

	otherDay := onDay.AddDate(0, 0, 7)
	if err := svc.CheckBookable(context.Background(), uuid.New(), otherDay, 90); !apperrors.IsValidation(err) {
		t.Errorf("slot on another date accepted: %v", err)
	}
}

func TestCheckBookableCollision(t *testing.T) {
	store := &stubWindowStore{
		windows: []models.AvailabilityWindow{
			{Recurring: true, Weekday: intPtr(2), StartMinute: 0, EndMinute: 1440},
		},
		taken: true,
	}
	svc := NewAvailabilityService(store, time.UTC)

	tuesday := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	if err := svc.CheckBookable(context.Background(), uuid.New(), tuesday, 60); err != apperrors.ErrSlotTaken {
		t.Errorf("colliding slot = %v, want ErrSlotTaken", err)
	}
}
