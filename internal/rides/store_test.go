package rides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/database"
	"github.com/bruinsplit/bruinsplit/internal/models"
)

func seedRide(t *testing.T) (*Store, models.Ride, models.User, models.User) {
	t.Helper()

	db, err := database.Initialize(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	owner := models.User{Email: "owner@ucla.edu", PasswordHash: "x", Name: "Owner"}
	rider := models.User{Email: "rider@ucla.edu", PasswordHash: "x", Name: "Rider"}
	if err := db.Create(&owner).Error; err != nil {
		t.Fatalf("create owner: %v", err)
	}
	if err := db.Create(&rider).Error; err != nil {
		t.Fatalf("create rider: %v", err)
	}

	ride := models.Ride{
		OwnerID:       owner.ID,
		Origin:        "Westwood",
		Destination:   "LAX",
		DepartureTime: time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC),
		Seats:         3,
		ShareCode:     "lax-morning",
	}
	if err := db.Create(&ride).Error; err != nil {
		t.Fatalf("create ride: %v", err)
	}

	return NewStore(db), ride, owner, rider
}

func TestOwnerIsAlwaysConfirmed(t *testing.T) {
	store, ride, owner, _ := seedRide(t)

	ok, err := store.VerifyRideMembership(context.Background(), ride.ID, owner.ID)
	if err != nil {
		t.Fatalf("verify owner: %v", err)
	}
	if !ok {
		t.Fatalf("ride owner must count as a confirmed member")
	}
}

func TestPendingMemberIsNotConfirmed(t *testing.T) {
	store, ride, _, rider := seedRide(t)

	member := models.RideMember{RideID: ride.ID, UserID: rider.ID, Status: models.RideMemberPending}
	if err := store.db.Create(&member).Error; err != nil {
		t.Fatalf("create pending member: %v", err)
	}

	ok, err := store.VerifyRideMembership(context.Background(), ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("verify pending member: %v", err)
	}
	if ok {
		t.Fatalf("a pending join request must not grant call access")
	}

	if err := store.db.Model(&models.RideMember{}).
		Where("id = ?", member.ID).
		Update("status", models.RideMemberConfirmed).Error; err != nil {
		t.Fatalf("confirm member: %v", err)
	}

	ok, err = store.VerifyRideMembership(context.Background(), ride.ID, rider.ID)
	if err != nil {
		t.Fatalf("verify confirmed member: %v", err)
	}
	if !ok {
		t.Fatalf("a confirmed member must pass the gate")
	}
}

func TestUnknownRide(t *testing.T) {
	store, _, owner, _ := seedRide(t)

	if _, err := store.VerifyRideMembership(context.Background(), "no-such-ride", owner.ID); !errors.Is(err, call.ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
	if _, err := store.ConfirmedMembers(context.Background(), "no-such-ride"); !errors.Is(err, call.ErrRideNotFound) {
		t.Fatalf("expected ErrRideNotFound, got %v", err)
	}
}

func TestConfirmedMembersOwnerFirst(t *testing.T) {
	store, ride, owner, rider := seedRide(t)

	member := models.RideMember{RideID: ride.ID, UserID: rider.ID, Status: models.RideMemberConfirmed}
	if err := store.db.Create(&member).Error; err != nil {
		t.Fatalf("create member: %v", err)
	}

	ids, err := store.ConfirmedMembers(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("confirmed members: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected owner and one member, got %v", ids)
	}
	if ids[0] != owner.ID {
		t.Fatalf("owner should lead the roster, got %v", ids)
	}
	if ids[1] != rider.ID {
		t.Fatalf("confirmed member missing from roster, got %v", ids)
	}
}
