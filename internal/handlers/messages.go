package handlers

import (
	"errors"
	"net/http"

	"github.com/bruinsplit/bruinsplit/internal/call"
	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/gin-gonic/gin"
)

type PostMessageRequest struct {
	Body string `json:"body" binding:"required,max=4000"`
}

// PostMessage writes a chat message to the ride. Membership uses the same
// gate as the call: owner or confirmed member.
func (h *Handlers) PostMessage(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.requireMembership(c, rideID, uid); err != nil {
		return
	}

	msg := models.Message{RideID: rideID, SenderID: uid, Body: req.Body}
	if err := h.db.Create(&msg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to post message"})
		return
	}

	// Notify the other ride members.
	if members, err := h.rideStore.ConfirmedMembers(c.Request.Context(), rideID); err == nil {
		for _, memberID := range members {
			if memberID == uid {
				continue
			}
			h.sendPush(memberID, "New ride message", req.Body, map[string]interface{}{
				"ride_id": rideID,
				"type":    "message",
			})
		}
	}

	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) ListMessages(c *gin.Context) {
	rideID := c.Param("ride_id")
	uid := currentUserID(c)

	if err := h.requireMembership(c, rideID, uid); err != nil {
		return
	}

	var messages []models.Message
	err := h.db.Preload("Sender").
		Where("ride_id = ?", rideID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	c.JSON(http.StatusOK, messages)
}

// requireMembership answers with the appropriate error response and returns
// non-nil when the user may not access the ride.
func (h *Handlers) requireMembership(c *gin.Context, rideID, uid string) error {
	ok, err := h.rideStore.VerifyRideMembership(c.Request.Context(), rideID, uid)
	if err != nil {
		if errors.Is(err, call.ErrRideNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Ride not found"})
			return err
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return err
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not a confirmed ride member"})
		return call.ErrForbidden
	}
	return nil
}
