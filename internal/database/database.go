package database

import (
	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func Initialize(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// Auto-migrate models
	if err := db.AutoMigrate(
		&models.User{},
		&models.Ride{},
		&models.RideMember{},
		&models.Friendship{},
		&models.Message{},
		&models.Event{},
		&models.PushSubscription{},
	); err != nil {
		return nil, err
	}

	return db, nil
}
