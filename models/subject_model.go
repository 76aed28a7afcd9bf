package models

import (
	"time"

	"github.com/google/uuid"
)

type Branch struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name string    `gorm:"size:100;not null;unique" json:"name"`

	CreatedAt time.Time `json:"-"`
}

type Subject struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BranchID uuid.UUID `gorm:"not null" json:"branch_id"`
	Name     string    `gorm:"size:100;not null" json:"name"`

	Branch Branch `gorm:"foreignkey:BranchID" json:"-"`

	CreatedAt time.Time `json:"-"`
}
