package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RideMemberStatus is the lifecycle state of a join request.
// Keep values stable because they are part of the public API.
type RideMemberStatus string

const (
	RideMemberPending   RideMemberStatus = "pending"
	RideMemberConfirmed RideMemberStatus = "confirmed"
)

type Ride struct {
	ID            string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	OwnerID       string    `gorm:"type:varchar(36);not null;index" json:"owner_id"`
	Origin        string    `gorm:"type:varchar(255);not null" json:"origin"`
	Destination   string    `gorm:"type:varchar(255);not null" json:"destination"`
	DepartureTime time.Time `gorm:"not null" json:"departure_time"`
	Seats         int       `gorm:"not null" json:"seats"`
	Notes         string    `gorm:"type:text" json:"notes"`
	ShareCode     string    `gorm:"type:varchar(16);uniqueIndex" json:"share_code"`
	EventID       *string   `gorm:"type:varchar(36);index" json:"event_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// Relations
	Owner   User         `gorm:"foreignKey:OwnerID" json:"owner"`
	Members []RideMember `gorm:"foreignKey:RideID" json:"members,omitempty"`
}

func (r *Ride) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

type RideMember struct {
	ID        string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	RideID    string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_ride_user" json:"ride_id"`
	UserID    string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_ride_user" json:"user_id"`
	Status    RideMemberStatus `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"user"`
}

func (m *RideMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
