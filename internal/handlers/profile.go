package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/bruinsplit/bruinsplit/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxPhotoSize = 5 << 20 // 5 MiB

type UpdateProfileRequest struct {
	Name string `json:"name" binding:"omitempty,min=2,max=100"`
	Bio  string `json:"bio" binding:"max=1000"`
}

func (h *Handlers) GetProfile(c *gin.Context) {
	profileID := c.Param("user_id")

	var user models.User
	if err := h.db.First(&user, "id = ?", profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *Handlers) UpdateProfile(c *gin.Context) {
	uid := currentUserID(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", uid).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.Name != "" {
		user.Name = req.Name
	}
	user.Bio = req.Bio

	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// UploadPhoto stores the profile photo on local disk under the configured
// uploads directory and records the relative path on the user row.
func (h *Handlers) UploadPhoto(c *gin.Context) {
	uid := currentUserID(c)

	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if file.Size > maxPhotoSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo exceeds 5MB limit"})
		return
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image format"})
		return
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", uid).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	dst := filepath.Join(h.config.UploadsDir, filename)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.logger.Error("photo upload failed", "user_id", uid, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store photo"})
		return
	}

	user.PhotoPath = filename
	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, user)
}
