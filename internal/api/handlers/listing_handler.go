package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"idleassets/api/internal/api/middleware"
	"idleassets/api/internal/config"
	"idleassets/api/internal/services"
	"idleassets/api/internal/storage"
	"idleassets/api/internal/tasks"
)

// ListingHandler handles REST requests related to listings.
type ListingHandler struct {
	cfg        *config.Config
	listings   services.IListingService
	storage    storage.IBlobStorage
	taskClient tasks.Enqueuer
}

func NewListingHandler(cfg *config.Config, listings services.IListingService, blobStorage storage.IBlobStorage, taskClient tasks.Enqueuer) *ListingHandler {
	return &ListingHandler{cfg: cfg, listings: listings, storage: blobStorage, taskClient: taskClient}
}

// SearchListings handles GET /v1/listings?q=&category=&lat=&lng=&radius=&limit=&owner_id=
func (h *ListingHandler) SearchListings(c *gin.Context) {
	ctx := c.Request.Context()

	if ownerID := c.Query("owner_id"); ownerID != "" {
		listings, err := h.listings.ListByOwner(ctx, ownerID)
		if err != nil {
			respondError(c, err, "Failed to list listings")
			return
		}
		c.JSON(http.StatusOK, listings)
		return
	}

	q := services.ListingQuery{
		Query:    c.Query("q"),
		Category: c.Query("category"),
	}
	var err error
	if q.Lat, err = optionalFloat(c, "lat"); err != nil {
		badRequest(c, "lat must be a number")
		return
	}
	if q.Lng, err = optionalFloat(c, "lng"); err != nil {
		badRequest(c, "lng must be a number")
		return
	}
	if (q.Lat == nil) != (q.Lng == nil) {
		badRequest(c, "lat and lng must be given together")
		return
	}
	if radius, err := optionalFloat(c, "radius"); err != nil {
		badRequest(c, "radius must be a number")
		return
	} else if radius != nil {
		q.RadiusKm = *radius
	}
	if raw := c.Query("limit"); raw != "" {
		if q.Limit, err = strconv.Atoi(raw); err != nil || q.Limit < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
	}

	listings, err := h.listings.SearchListings(ctx, q)
	if err != nil {
		respondError(c, err, "Failed to search listings")
		return
	}
	c.JSON(http.StatusOK, listings)
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetListing handles GET /v1/listings/:id
func (h *ListingHandler) GetListing(c *gin.Context) {
	listing, err := h.listings.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to retrieve listing")
		return
	}
	c.JSON(http.StatusOK, listing)
}

// CreateListing handles POST /v1/listings
func (h *ListingHandler) CreateListing(c *gin.Context) {
	var in services.ListingInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid listing body")
		return
	}
	listing, err := h.listings.CreateListing(c.Request.Context(), middleware.UserID(c), in)
	if err != nil {
		respondError(c, err, "Failed to create listing")
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// UploadPhoto handles POST /v1/listings/:id/photos (multipart field "photo").
// The stored image is normalized in the background.
func (h *ListingHandler) UploadPhoto(c *gin.Context) {
	ctx := c.Request.Context()
	listingID := c.Param("id")
	userID := middleware.UserID(c)

	// Check ownership and the photo cap before reading the body.
	slot, err := h.listings.NextPhotoSlot(ctx, listingID, userID)
	if err != nil {
		respondError(c, err, "Failed to upload photo")
		return
	}

	upload, ok := readImageUpload(c, "photo", h.cfg.ImageMaxSizeMB)
	if !ok {
		return
	}

	key := storage.ListingPhotoPath(listingID, slot, upload.Ext)
	photoURL, err := h.storage.Upload(ctx, key, upload.ContentType, upload.Data)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to store photo"})
		return
	}

	listing, err := h.listings.AddPhoto(ctx, listingID, userID, slot, photoURL)
	if err != nil {
		respondError(c, err, "Failed to save photo")
		return
	}

	h.enqueueImage(c, key, tasks.ImageKindListingPhoto)
	c.JSON(http.StatusCreated, listing)
}

func (h *ListingHandler) enqueueImage(c *gin.Context, key, kind string) {
	task, err := tasks.NewImageTask(tasks.ImageTaskPayload{Key: key, Kind: kind})
	if err := tasks.Enqueue(c.Request.Context(), h.taskClient, task, err); err != nil {
		log.Printf("ListingHandler: image task for %s not queued: %v", key, err)
	}
}
