package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

type Friendship struct {
	ID          string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	RequesterID string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_friend_pair" json:"requester_id"`
	AddresseeID string           `gorm:"type:varchar(36);not null;uniqueIndex:idx_friend_pair" json:"addressee_id"`
	Status      FriendshipStatus `gorm:"type:varchar(16);not null;default:pending" json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relations
	Requester User `gorm:"foreignKey:RequesterID" json:"requester"`
	Addressee User `gorm:"foreignKey:AddresseeID" json:"addressee"`
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
