package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is a campus happening (game, concert, airport rush) rides can attach
// to, so riders heading to the same place find each other.
type Event struct {
	ID          string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatorID   string    `gorm:"type:varchar(36);not null;index" json:"creator_id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Location    string    `gorm:"type:varchar(255);not null" json:"location"`
	StartsAt    time.Time `gorm:"not null" json:"starts_at"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
