package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/api/handlers"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
)

type marketplaceMocks struct {
	categories *MockCategoryService
	favorites  *MockFavoriteService
	reviews    *MockReviewService
}

func newMarketplaceRouter() (http.Handler, marketplaceMocks) {
	m := marketplaceMocks{new(MockCategoryService), new(MockFavoriteService), new(MockReviewService)}
	h := handlers.NewMarketplaceHandler(m.categories, m.favorites, m.reviews)
	r := newRouter()
	r.GET("/v1/categories", h.ListCategories)
	r.GET("/v1/listings/:id/reviews", h.ListReviews)
	authed := r.Group("/v1", asUser(testUserID))
	authed.GET("/favorites", h.ListFavorites)
	authed.GET("/listings/:id/favorite", h.IsFavorite)
	authed.POST("/listings/:id/favorite", h.AddFavorite)
	authed.DELETE("/listings/:id/favorite", h.RemoveFavorite)
	authed.POST("/rentals/:id/review", h.CreateReview)
	return r, m
}

func TestMarketplaceHandler_ListCategories(t *testing.T) {
	r, m := newMarketplaceRouter()
	m.categories.On("ListCategories", mock.Anything).Return(models.DefaultCategories, nil)

	w := doJSON(r, http.MethodGet, "/v1/categories", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Category
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, len(models.DefaultCategories))
}

func TestMarketplaceHandler_Favorites(t *testing.T) {
	r, m := newMarketplaceRouter()
	m.favorites.On("AddFavorite", mock.Anything, testUserID, "listing-1").Return(nil)
	m.favorites.On("AddFavorite", mock.Anything, testUserID, "gone").Return(services.ErrListingNotFound)
	m.favorites.On("IsFavorite", mock.Anything, testUserID, "listing-1").Return(true, nil)
	m.favorites.On("RemoveFavorite", mock.Anything, testUserID, "listing-1").Return(nil)
	m.favorites.On("ListFavorites", mock.Anything, testUserID).Return([]models.Listing{{Title: "Tent"}}, nil)

	w := doJSON(r, http.MethodPost, "/v1/listings/listing-1/favorite", nil)
	assert.JSONEq(t, `{"favorite":true}`, w.Body.String())

	w = doJSON(r, http.MethodPost, "/v1/listings/gone/favorite", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(r, http.MethodGet, "/v1/listings/listing-1/favorite", nil)
	assert.JSONEq(t, `{"favorite":true}`, w.Body.String())

	w = doJSON(r, http.MethodDelete, "/v1/listings/listing-1/favorite", nil)
	assert.JSONEq(t, `{"favorite":false}`, w.Body.String())

	w = doJSON(r, http.MethodGet, "/v1/favorites", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	m.favorites.AssertExpectations(t)
}

func TestMarketplaceHandler_CreateReview(t *testing.T) {
	r, m := newMarketplaceRouter()
	review := &models.Review{RentalID: "rental-1", Rating: 5, Comment: "Spotless"}
	m.reviews.On("CreateReview", mock.Anything, "rental-1", testUserID, 5, "Spotless").Return(review, nil)
	m.reviews.On("CreateReview", mock.Anything, "rental-2", testUserID, 4, "").Return(nil, services.ErrReviewNotAllowed)
	m.reviews.On("CreateReview", mock.Anything, "rental-3", testUserID, 4, "").Return(nil, services.ErrAlreadyReviewed)

	w := doJSON(r, http.MethodPost, "/v1/rentals/rental-1/review", handlers.CreateReviewRequest{Rating: 5, Comment: "Spotless"})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/rentals/rental-1/review", handlers.CreateReviewRequest{Rating: 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/rentals/rental-2/review", handlers.CreateReviewRequest{Rating: 4})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(r, http.MethodPost, "/v1/rentals/rental-3/review", handlers.CreateReviewRequest{Rating: 4})
	assert.Equal(t, http.StatusConflict, w.Code)
	m.reviews.AssertExpectations(t)
}

func TestMarketplaceHandler_ListReviews(t *testing.T) {
	r, m := newMarketplaceRouter()
	m.reviews.On("ListForListing", mock.Anything, "listing-1").Return([]models.Review{{Rating: 4}}, nil)

	w := doJSON(r, http.MethodGet, "/v1/listings/listing-1/reviews", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Review
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 4, got[0].Rating)
}
