package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/auth"
	"idleassets/api/internal/cache"
	"idleassets/api/internal/config"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
	"idleassets/api/internal/tasks"
)

// AuthHandler issues and revokes bearer tokens.
type AuthHandler struct {
	cfg        *config.Config
	profiles   services.IProfileService
	revoker    cache.TokenRevoker
	taskClient tasks.Enqueuer
}

func NewAuthHandler(cfg *config.Config, profiles services.IProfileService, revoker cache.TokenRevoker, taskClient tasks.Enqueuer) *AuthHandler {
	return &AuthHandler{cfg: cfg, profiles: profiles, revoker: revoker, taskClient: taskClient}
}

// SignUpRequest is the body of POST /v1/auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

// SignInRequest is the body of POST /v1/auth/signin.
type SignInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries a fresh credential and the principal it belongs to.
type AuthResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      models.User     `json:"user"`
	Profile   *models.Profile `json:"profile"`
}

// SignUp handles POST /v1/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, password and full_name are required")
		return
	}

	ctx := c.Request.Context()
	profile, err := h.profiles.CreateProfile(ctx, req.Email, req.Password, req.FullName)
	if err != nil {
		respondError(c, err, "Failed to create account")
		return
	}

	task, err := tasks.NewEmailTask(tasks.EmailTaskPayload{
		To:         profile.Email,
		TemplateID: services.TemplateWelcome,
		Locale:     services.DefaultLocale,
		Data:       map[string]interface{}{"name": profile.FullName, "link": h.cfg.AppBaseURL},
	})
	if err := tasks.Enqueue(ctx, h.taskClient, task, err); err != nil {
		log.Printf("AuthHandler: welcome email for %s not queued: %v", profile.ID, err)
	}

	h.issue(c, http.StatusCreated, profile)
}

// SignIn handles POST /v1/auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email and password are required")
		return
	}

	profile, err := h.profiles.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Failed to sign in")
		return
	}
	h.issue(c, http.StatusOK, profile)
}

func (h *AuthHandler) issue(c *gin.Context, status int, profile *models.Profile) {
	token, claims, err := auth.GenerateJWT(profile.ID, profile.Email, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}
	c.JSON(status, AuthResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      models.User{ID: profile.ID, Email: profile.Email},
		Profile:   profile,
	})
}

// SignOut handles POST /v1/auth/signout. The presented token stays revoked
// until it would have expired anyway.
func (h *AuthHandler) SignOut(c *gin.Context) {
	tokenID := c.GetString(middleware.ContextKeyTokenID)
	expiry := c.GetTime(middleware.ContextKeyTokenExpiry)
	if tokenID == "" {
		c.Status(http.StatusNoContent)
		return
	}
	if expiry.IsZero() {
		expiry = time.Now().Add(h.cfg.JwtTTL)
	}
	if err := h.revoker.Revoke(c.Request.Context(), tokenID, expiry); err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign out"})
		return
	}
	c.Status(http.StatusNoContent)
}

// CurrentUser handles GET /v1/auth/user
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	c.JSON(http.StatusOK, models.User{
		ID:    middleware.UserID(c),
		Email: c.GetString(middleware.ContextKeyEmail),
	})
}
