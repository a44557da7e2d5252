package handlers

import (
	"errors"
	"net/http"

	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type FriendRequestBody struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handlers) RequestFriend(c *gin.Context) {
	uid := currentUserID(c)

	var req FriendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.UserID == uid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot friend yourself"})
		return
	}

	var target models.User
	if err := h.db.First(&target, "id = ?", req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// One row per pair, whichever direction it was requested in.
	var existing models.Friendship
	err := h.db.Where(
		"(requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?)",
		uid, req.UserID, req.UserID, uid,
	).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Friendship already exists"})
		return
	}

	friendship := models.Friendship{
		RequesterID: uid,
		AddresseeID: req.UserID,
		Status:      models.FriendshipPending,
	}
	if err := h.db.Create(&friendship).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create friend request"})
		return
	}

	h.sendPush(req.UserID, "New friend request", "You have a new friend request on BruinSplit", map[string]interface{}{
		"type": "friend_request",
	})

	c.JSON(http.StatusCreated, friendship)
}

type RespondFriendRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handlers) RespondFriend(c *gin.Context) {
	friendshipID := c.Param("friendship_id")
	uid := currentUserID(c)

	var req RespondFriendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var friendship models.Friendship
	if err := h.db.First(&friendship, "id = ?", friendshipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Friend request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	// Only the addressee can accept or decline.
	if friendship.AddresseeID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your friend request"})
		return
	}
	if friendship.Status != models.FriendshipPending {
		c.JSON(http.StatusConflict, gin.H{"error": "Request already handled"})
		return
	}

	if !req.Accept {
		if err := h.db.Delete(&friendship).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decline request"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	friendship.Status = models.FriendshipAccepted
	if err := h.db.Save(&friendship).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to accept request"})
		return
	}

	c.JSON(http.StatusOK, friendship)
}

func (h *Handlers) ListFriends(c *gin.Context) {
	uid := currentUserID(c)

	var friendships []models.Friendship
	err := h.db.Preload("Requester").Preload("Addressee").
		Where("requester_id = ? OR addressee_id = ?", uid, uid).
		Order("created_at DESC").
		Find(&friendships).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch friends"})
		return
	}

	c.JSON(http.StatusOK, friendships)
}

func (h *Handlers) RemoveFriend(c *gin.Context) {
	friendshipID := c.Param("friendship_id")
	uid := currentUserID(c)

	var friendship models.Friendship
	if err := h.db.First(&friendship, "id = ?", friendshipID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Friendship not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if friendship.RequesterID != uid && friendship.AddresseeID != uid {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not your friendship"})
		return
	}

	if err := h.db.Delete(&friendship).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove friend"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
