package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type CreateEventRequest struct {
	Title       string    `json:"title" binding:"required,max=255"`
	Location    string    `json:"location" binding:"required,max=255"`
	StartsAt    time.Time `json:"starts_at" binding:"required"`
	Description string    `json:"description" binding:"max=2000"`
}

func (h *Handlers) CreateEvent(c *gin.Context) {
	uid := currentUserID(c)

	var req CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := models.Event{
		CreatorID:   uid,
		Title:       req.Title,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Description: req.Description,
	}
	if err := h.db.Create(&event).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create event"})
		return
	}

	c.JSON(http.StatusCreated, event)
}

func (h *Handlers) ListEvents(c *gin.Context) {
	var events []models.Event
	q := h.db.Order("starts_at ASC")
	if c.Query("upcoming") == "true" {
		q = q.Where("starts_at > ?", h.nowFn())
	}
	if err := q.Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *Handlers) GetEvent(c *gin.Context) {
	eventID := c.Param("event_id")

	var event models.Event
	if err := h.db.First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, event)
}
