package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/config"
	"idleassets/api/internal/services"
	"idleassets/api/internal/storage"
	"idleassets/api/internal/tasks"
)

// ProfileHandler handles the caller's own profile and public profiles.
type ProfileHandler struct {
	cfg        *config.Config
	profiles   services.IProfileService
	storage    storage.IBlobStorage
	taskClient tasks.Enqueuer
}

func NewProfileHandler(cfg *config.Config, profiles services.IProfileService, blobStorage storage.IBlobStorage, taskClient tasks.Enqueuer) *ProfileHandler {
	return &ProfileHandler{cfg: cfg, profiles: profiles, storage: blobStorage, taskClient: taskClient}
}

// GetMe handles GET /v1/profile
func (h *ProfileHandler) GetMe(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe handles PATCH /v1/profile. Absent fields are left unchanged.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	var update services.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		badRequest(c, "Invalid profile body")
		return
	}
	profile, err := h.profiles.UpdateProfile(c.Request.Context(), middleware.UserID(c), update)
	if err != nil {
		respondError(c, err, "Failed to update profile")
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UploadAvatar handles POST /v1/profile/avatar (multipart field "avatar").
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	upload, ok := readImageUpload(c, "avatar", h.cfg.ImageMaxSizeMB)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	key := storage.AvatarPath(userID, upload.Ext)
	avatarURL, err := h.storage.Upload(ctx, key, upload.ContentType, upload.Data)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to store avatar"})
		return
	}

	profile, err := h.profiles.SetAvatarURL(ctx, userID, avatarURL)
	if err != nil {
		respondError(c, err, "Failed to save avatar")
		return
	}

	task, err := tasks.NewImageTask(tasks.ImageTaskPayload{Key: key, Kind: tasks.ImageKindAvatar})
	if err := tasks.Enqueue(ctx, h.taskClient, task, err); err != nil {
		log.Printf("ProfileHandler: image task for %s not queued: %v", key, err)
	}
	c.JSON(http.StatusOK, profile)
}

// GetPublicProfile handles GET /v1/profiles/:id
func (h *ProfileHandler) GetPublicProfile(c *gin.Context) {
	profile, err := h.profiles.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve profile")
		return
	}
	c.JSON(http.StatusOK, profile.Public())
}
