package rides

import (
	"context"
	"errors"
	"fmt"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/models"

	"gorm.io/gorm"
)

// Store answers ride membership questions from the database. It implements
// call.MembershipOracle for the signaling service and backs the ride
// handlers' permission checks.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// VerifyRideMembership reports whether userID may act on the ride's call.
// The ride owner always counts as confirmed; everyone else must hold a
// confirmed membership row. Returns call.ErrRideNotFound for unknown rides.
func (s *Store) VerifyRideMembership(ctx context.Context, rideID, userID string) (bool, error) {
	var ride models.Ride
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&ride, "id = ?", rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, call.ErrRideNotFound
		}
		return false, fmt.Errorf("load ride: %w", err)
	}

	if ride.OwnerID == userID {
		return true, nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.RideMember{}).
		Where("ride_id = ? AND user_id = ? AND status = ?", rideID, userID, models.RideMemberConfirmed).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count membership: %w", err)
	}
	return count > 0, nil
}

// ConfirmedMembers lists everyone eligible for the ride's call: the owner
// first, then confirmed members in join order. Returns call.ErrRideNotFound
// for unknown rides.
func (s *Store) ConfirmedMembers(ctx context.Context, rideID string) ([]string, error) {
	var ride models.Ride
	if err := s.db.WithContext(ctx).Select("id", "owner_id").First(&ride, "id = ?", rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, call.ErrRideNotFound
		}
		return nil, fmt.Errorf("load ride: %w", err)
	}

	var members []models.RideMember
	err := s.db.WithContext(ctx).
		Where("ride_id = ? AND status = ?", rideID, models.RideMemberConfirmed).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}

	ids := make([]string, 0, len(members)+1)
	ids = append(ids, ride.OwnerID)
	for _, m := range members {
		if m.UserID == ride.OwnerID {
			continue
		}
		ids = append(ids, m.UserID)
	}
	return ids, nil
}
