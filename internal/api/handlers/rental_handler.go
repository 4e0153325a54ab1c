package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
	"idleassets/api/internal/tasks"
)

// RentalHandler exposes rentals and is the authority for status transitions.
type RentalHandler struct {
	rentals    services.IRentalService
	earnings   services.IEarningsService
	taskClient tasks.Enqueuer
}

func NewRentalHandler(rentals services.IRentalService, earnings services.IEarningsService, taskClient tasks.Enqueuer) *RentalHandler {
	return &RentalHandler{rentals: rentals, earnings: earnings, taskClient: taskClient}
}

// CreateRentalRequest is the body of POST /v1/rentals.
type CreateRentalRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

// UpdateStatusRequest is the body of PATCH /v1/rentals/:id/status.
type UpdateStatusRequest struct {
	Status models.RentalStatus `json:"status" binding:"required"`
}

// ListRentals handles GET /v1/rentals?role=renting|lending
func (h *RentalHandler) ListRentals(c *gin.Context) {
	rentals, err := h.rentals.ListRentals(c.Request.Context(), middleware.UserID(c), c.Query("role"))
	if err != nil {
		respondError(c, err, "Failed to list rentals")
		return
	}
	c.JSON(http.StatusOK, rentals)
}

// CreateRental handles POST /v1/rentals
func (h *RentalHandler) CreateRental(c *gin.Context) {
	var req CreateRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "listing_id, start_date and end_date are required")
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	rental, err := h.rentals.CreateRental(ctx, userID, req.ListingID, req.StartDate, req.EndDate)
	if err != nil {
		respondError(c, err, "Failed to request rental")
		return
	}
	h.statusChanged(ctx, rental, userID)
	c.JSON(http.StatusCreated, rental)
}

// GetRental handles GET /v1/rentals/:id
func (h *RentalHandler) GetRental(c *gin.Context) {
	rental, err := h.rentals.GetRental(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve rental")
		return
	}
	c.JSON(http.StatusOK, rental)
}

// UpdateStatus handles PATCH /v1/rentals/:id/status
func (h *RentalHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required")
		return
	}
	if !req.Status.Valid() {
		badRequest(c, "unknown status "+string(req.Status))
		return
	}

	ctx := c.Request.Context()
	userID := middleware.UserID(c)
	rental, err := h.rentals.UpdateStatus(ctx, c.Param("id"), userID, req.Status)
	if err != nil {
		respondError(c, err, "Failed to update rental")
		return
	}
	h.statusChanged(ctx, rental, userID)
	c.JSON(http.StatusOK, rental)
}

// GetEarnings handles GET /v1/earnings
func (h *RentalHandler) GetEarnings(c *gin.Context) {
	earnings, err := h.earnings.GetEarnings(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to load earnings")
		return
	}
	c.JSON(http.StatusOK, earnings)
}

// statusChanged queues the counterpart's notification. The transition is
// already committed, so a queue failure is only logged.
func (h *RentalHandler) statusChanged(ctx context.Context, rental *models.Rental, actorID string) {
	task, err := tasks.NewRentalStatusChangedTask(tasks.RentalStatusChangedPayload{
		RentalID: rental.ID,
		Status:   rental.Status,
		ActorID:  actorID,
	})
	if err := tasks.Enqueue(ctx, h.taskClient, task, err); err != nil {
		log.Printf("RentalHandler: notification for rental %s not queued: %v", rental.ID, err)
	}
}
