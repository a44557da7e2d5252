package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Message struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	RideID    string    `gorm:"type:varchar(36);not null;index" json:"ride_id"`
	SenderID  string    `gorm:"type:varchar(36);not null;index" json:"sender_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`

	// Relations
	Sender User `gorm:"foreignKey:SenderID" json:"sender"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
