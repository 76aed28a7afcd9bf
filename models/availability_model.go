package models

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityWindow is either a recurring weekly window (Weekday set) or a
// one-off date-specific window (Date set). Times are minutes from midnight so
// a window never spans days.
type AvailabilityWindow struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TeacherID   uuid.UUID  `gorm:"not null;index" json:"-"`
	Recurring   bool       `gorm:"not null;default:false" json:"recurring"`
	Weekday     *int       `json:"weekday,omitempty"`
	Date        *time.Time `gorm:"type:date" json:"date,omitempty"`
	StartMinute int        `gorm:"not null" json:"start_minute"`
	EndMinute   int        `gorm:"not null" json:"end_minute"`

	Teacher Teacher `gorm:"foreignkey:TeacherID" json:"-"`

	CreatedAt time.Time `json:"-"`
}
