package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/services"
)

// statusFor maps a service error to its HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrNotParticipant),
		errors.Is(err, services.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, services.ErrProfileNotFound),
		errors.Is(err, services.ErrListingNotFound),
		errors.Is(err, services.ErrRentalNotFound),
		errors.Is(err, services.ErrConversationNotFound),
		errors.Is(err, services.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrStatusConflict),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrPhotoConflict),
		errors.Is(err, services.ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, services.ErrTransitionNotAllowed),
		errors.Is(err, services.ErrSelfRental),
		errors.Is(err, services.ErrListingUnavailable),
		errors.Is(err, services.ErrTooManyPhotos),
		errors.Is(err, services.ErrReviewNotAllowed):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": ...}. Client errors carry the service
// message; anything else is logged through gin and replaced by fallback.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
