package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/services"
)

// MarketplaceHandler serves categories, favorites and reviews.
type MarketplaceHandler struct {
	categories services.ICategoryService
	favorites  services.IFavoriteService
	reviews    services.IReviewService
}

func NewMarketplaceHandler(categories services.ICategoryService, favorites services.IFavoriteService, reviews services.IReviewService) *MarketplaceHandler {
	return &MarketplaceHandler{categories: categories, favorites: favorites, reviews: reviews}
}

// CreateReviewRequest is the body of POST /v1/rentals/:id/review.
type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// ListCategories handles GET /v1/categories
func (h *MarketplaceHandler) ListCategories(c *gin.Context) {
	categories, err := h.categories.ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to list categories")
		return
	}
	c.JSON(http.StatusOK, categories)
}

// ListFavorites handles GET /v1/favorites
func (h *MarketplaceHandler) ListFavorites(c *gin.Context) {
	listings, err := h.favorites.ListFavorites(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to list favorites")
		return
	}
	c.JSON(http.StatusOK, listings)
}

// IsFavorite handles GET /v1/listings/:id/favorite
func (h *MarketplaceHandler) IsFavorite(c *gin.Context) {
	fav, err := h.favorites.IsFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to check favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": fav})
}

// AddFavorite handles POST /v1/listings/:id/favorite
func (h *MarketplaceHandler) AddFavorite(c *gin.Context) {
	if err := h.favorites.AddFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to save favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": true})
}

// RemoveFavorite handles DELETE /v1/listings/:id/favorite
func (h *MarketplaceHandler) RemoveFavorite(c *gin.Context) {
	if err := h.favorites.RemoveFavorite(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to remove favorite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorite": false})
}

// ListReviews handles GET /v1/listings/:id/reviews
func (h *MarketplaceHandler) ListReviews(c *gin.Context) {
	reviews, err := h.reviews.ListForListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to list reviews")
		return
	}
	c.JSON(http.StatusOK, reviews)
}

// CreateReview handles POST /v1/rentals/:id/review
func (h *MarketplaceHandler) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "rating must be between 1 and 5")
		return
	}
	review, err := h.reviews.CreateReview(c.Request.Context(), c.Param("id"), middleware.UserID(c), req.Rating, req.Comment)
	if err != nil {
		respondError(c, err, "Failed to save review")
		return
	}
	c.JSON(http.StatusCreated, review)
}
