package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/services"
)

type NotificationHandler struct {
	notifications services.INotificationService
}

func NewNotificationHandler(notifications services.INotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// ListNotifications handles GET /v1/notifications?limit=
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
	}
	list, err := h.notifications.List(c.Request.Context(), middleware.UserID(c), limit)
	if err != nil {
		respondError(c, err, "Failed to list notifications")
		return
	}
	c.JSON(http.StatusOK, list)
}

// MarkAllRead handles POST /v1/notifications/read
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	n, err := h.notifications.MarkAllRead(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to mark notifications read")
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}

// MarkRead handles POST /v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	if err := h.notifications.MarkRead(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}
