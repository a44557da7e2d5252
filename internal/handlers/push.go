package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bruinsplit/bruinsplit/internal/models"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type PushSubscribeKeys struct {
	P256DH string `json:"p256dh" binding:"required"`
	Auth   string `json:"auth" binding:"required"`
}

type PushSubscribeRequest struct {
	Endpoint string            `json:"endpoint" binding:"required"`
	Keys     PushSubscribeKeys `json:"keys" binding:"required"`
}

func (h *Handlers) GetVAPIDPublicKey(c *gin.Context) {
	if h.config.VAPIDKeys == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": h.config.VAPIDKeys.PublicKey})
}

func (h *Handlers) SubscribePush(c *gin.Context) {
	uid := currentUserID(c)

	var req PushSubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// One subscription per user: replace whatever was there.
	if err := h.db.Where("user_id = ?", uid).Delete(&models.PushSubscription{}).Error; err != nil {
		h.logger.Warn("failed to clear old push subscriptions", "user_id", uid, "error", err)
	}

	subscription := models.PushSubscription{
		UserID:   uid,
		Endpoint: req.Endpoint,
		P256DH:   req.Keys.P256DH,
		Auth:     req.Keys.Auth,
	}
	if err := h.db.Create(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, subscription)
}

func (h *Handlers) UnsubscribePush(c *gin.Context) {
	uid := currentUserID(c)

	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var subscription models.PushSubscription
	if err := h.db.Where("user_id = ? AND endpoint = ?", uid, req.Endpoint).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if err := h.db.Delete(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// sendPush delivers a web-push notification to every subscription of userID.
// Best-effort: failures are logged, dead subscriptions are dropped, callers
// never block on the result.
func (h *Handlers) sendPush(userID, title, body string, data map[string]interface{}) {
	if h.config.VAPIDKeys == nil {
		return
	}

	var subscriptions []models.PushSubscription
	if err := h.db.Where("user_id = ?", userID).Find(&subscriptions).Error; err != nil {
		h.logger.Warn("push subscription lookup failed", "user_id", userID, "error", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": title,
		"body":  body,
		"data":  data,
	})
	if err != nil {
		return
	}

	for _, sub := range subscriptions {
		go func(sub models.PushSubscription) {
			resp, err := webpush.SendNotification(payload, &webpush.Subscription{
				Endpoint: sub.Endpoint,
				Keys: webpush.Keys{
					P256dh: sub.P256DH,
					Auth:   sub.Auth,
				},
			}, &webpush.Options{
				Subscriber:      h.config.VAPIDKeys.Subject,
				VAPIDPublicKey:  h.config.VAPIDKeys.PublicKey,
				VAPIDPrivateKey: h.config.VAPIDKeys.PrivateKey,
				TTL:             60,
			})
			if err != nil {
				h.logger.Warn("push delivery failed", "user_id", userID, "error", err)
				return
			}
			defer resp.Body.Close()

			// 404/410 mean the browser dropped the subscription.
			if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
				h.db.Delete(&sub)
			}
		}(sub)
	}
}
