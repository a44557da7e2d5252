package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"gorm.io/gorm"
)

type CreateRideRequest struct {
	Origin        string    `json:"origin" binding:"required,max=255"`
	Destination   string    `json:"destination" binding:"required,max=255"`
	DepartureTime time.Time `json:"departure_time" binding:"required"`
	Seats         int       `json:"seats" binding:"required,min=1,max=8"`
	Notes         string    `json:"notes" binding:"max=2000"`
	EventID       *string   `json:"event_id,omitempty"`
}

func (h *Handlers) CreateRide(c *gin.Context) {
	uid := currentUserID(c)

	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.EventID != nil {
		var event models.Event
		if err := h.db.First(&event, "id = ?", *req.EventID).Error; err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown event"})
			return
		}
	}

	code, err := gonanoid.New(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate share code"})
		return
	}

	ride := models.Ride{
		OwnerID:       uid,
		Origin:        req.Origin,
		Destination:   req.Destination,
		DepartureTime: req.DepartureTime,
		Seats:         req.Seats,
		Notes:         req.Notes,
		ShareCode:     code,
		EventID:       req.EventID,
	}
	if err := h.db.Create(&ride).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create ride"})
		return
	}

	c.JSON(http.StatusCreated, ride)
}

func (h *Handlers) ListRides(c *gin.Context) {
	var rides []models.Ride
	q := h.db.Preload("Owner").Order("departure_time ASC")

	if dest := c.Query("destination"); dest != "" {
		q = q.Where("destination LIKE ?", "%"+dest+"%")
	}
	if eventID := c.Query("event_id"); eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}
	if c.Query("upcoming") == "true" {
		q = q.Where("departure_time > ?", h.nowFn())
	}

	if err := q.Find(&rides).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rides"})
		return
	}

	c.JSON(http.StatusOK, rides)
}

func (h *Handlers) GetRide(c *gin.Context) {
	rideID := c.Param("ride_id")

	var ride models.Ride
	err := h.db.Preload("Owner").Preload("Members").Preload("Members.User").
		First(&ride, "id = ? OR share_code = ?", rideID, rideID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, ride)
}

func (h *Handlers) DeleteRide(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	var ride models.Ride
	if err := h.db.First(&ride, "id = ?", rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if ride.OwnerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the ride owner can delete the ride"})
		return
	}

	if err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("ride_id = ?", ride.ID).Delete(&models.RideMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("ride_id = ?", ride.ID).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&ride).Error
	}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete ride"})
		return
	}

	// Tear down any live call and close event sockets for the ride.
	if participants, ok := h.signaling.Participants(ride.ID); ok {
		for _, p := range participants {
			h.signaling.Leave(ride.ID, p)
		}
	}
	h.hub.Broadcast(ride.ID, rideEvent{Type: "ride-deleted", RideID: ride.ID})

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RequestJoinRide files a pending membership request. The owner confirms or
// declines it; only confirmed members reach the ride's chat and call.
func (h *Handlers) RequestJoinRide(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	var ride models.Ride
	if err := h.db.First(&ride, "id = ?", rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if ride.OwnerID == uid {
		c.JSON(http.StatusConflict, gin.H{"error": "You own this ride"})
		return
	}

	var existing models.RideMember
	if err := h.db.Where("ride_id = ? AND user_id = ?", ride.ID, uid).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Join request already exists"})
		return
	}

	var confirmed int64
	h.db.Model(&models.RideMember{}).
		Where("ride_id = ? AND status = ?", ride.ID, models.RideMemberConfirmed).
		Count(&confirmed)
	if int(confirmed) >= ride.Seats {
		c.JSON(http.StatusConflict, gin.H{"error": "Ride is full"})
		return
	}

	member := models.RideMember{RideID: ride.ID, UserID: uid, Status: models.RideMemberPending}
	if err := h.db.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create join request"})
		return
	}

	h.sendPush(ride.OwnerID, "New join request", "Someone wants to join your ride to "+ride.Destination, map[string]interface{}{
		"ride_id": ride.ID,
		"type":    "join_request",
	})

	c.JSON(http.StatusCreated, member)
}

type ConfirmMemberRequest struct {
	Confirm bool `json:"confirm"`
}

// ConfirmMember lets the ride owner confirm or decline a pending request.
func (h *Handlers) ConfirmMember(c *gin.Context) {
	rideID := c.Param("ride_id")
	memberUserID := c.Param("user_id")
	uid := currentUserID(c)

	var req ConfirmMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var ride models.Ride
	if err := h.db.First(&ride, "id = ?", rideID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if ride.OwnerID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the ride owner can confirm members"})
		return
	}

	var member models.RideMember
	if err := h.db.Where("ride_id = ? AND user_id = ?", ride.ID, memberUserID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Join request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !req.Confirm {
		if err := h.db.Delete(&member).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decline request"})
			return
		}
		h.sendPush(memberUserID, "Ride request declined", "Your request to join the ride to "+ride.Destination+" was declined", nil)
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	member.Status = models.RideMemberConfirmed
	if err := h.db.Save(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm member"})
		return
	}

	h.sendPush(memberUserID, "You're in!", "You were confirmed for the ride to "+ride.Destination, map[string]interface{}{
		"ride_id": ride.ID,
		"type":    "member_confirmed",
	})

	c.JSON(http.StatusOK, member)
}

// LeaveRide removes the caller's membership. A departing member is also
// dropped from any live call so stale signaling state does not linger.
func (h *Handlers) LeaveRide(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	res := h.db.Where("ride_id = ? AND user_id = ?", rideID, uid).Delete(&models.RideMember{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave ride"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not a member of this ride"})
		return
	}

	h.signaling.Leave(rideID, uid)

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handlers) ListRideMembers(c *gin.Context) {
	rideID := c.Param("ride_id")

	var members []models.RideMember
	err := h.db.Preload("User").
		Where("ride_id = ?", rideID).
		Order("created_at ASC").
		Find(&members).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	c.JSON(http.StatusOK, members)
}
