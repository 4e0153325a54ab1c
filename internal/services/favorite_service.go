package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/db"
	"idleassets/api/internal/models"
)

// IFavoriteService manages the listings a user has saved.
type IFavoriteService interface {
	AddFavorite(ctx context.Context, userID, listingID string) error
	RemoveFavorite(ctx context.Context, userID, listingID string) error
	IsFavorite(ctx context.Context, userID, listingID string) (bool, error)
	ListFavorites(ctx context.Context, userID string) ([]models.Listing, error)
}

const favoritesCollection = "favorites"

type favoriteService struct {
	db       *mongo.Database
	listings IListingService
}

func NewFavoriteService(db *mongo.Database, listings IListingService) IFavoriteService {
	return &favoriteService{db: db, listings: listings}
}

// AddFavorite saves the listing for the user. Saving twice is not an error.
func (s *favoriteService) AddFavorite(ctx context.Context, userID, listingID string) error {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return err
	}
	fav := &models.Favorite{
		Base:      models.NewBase(),
		UserID:    userID,
		ListingID: listingID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Collection(favoritesCollection).InsertOne(ctx, fav)
	if err != nil && !db.IsMongoDuplicateKeyError(err) {
		return fmt.Errorf("failed to save favorite: %w", err)
	}
	return nil
}

func (s *favoriteService) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	_, err := s.db.Collection(favoritesCollection).DeleteOne(ctx, bson.M{"user_id": userID, "listing_id": listingID})
	if err != nil {
		return fmt.Errorf("failed to remove favorite: %w", err)
	}
	return nil
}

func (s *favoriteService) IsFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	err := s.db.Collection(favoritesCollection).FindOne(ctx, bson.M{"user_id": userID, "listing_id": listingID}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check favorite: %w", err)
	}
	return true, nil
}

// ListFavorites returns the saved listings, most recently saved first.
// Listings deleted since are skipped.
func (s *favoriteService) ListFavorites(ctx context.Context, userID string) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(favoritesCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	var favs []models.Favorite
	if err := cursor.All(ctx, &favs); err != nil {
		return nil, fmt.Errorf("failed to decode favorites: %w", err)
	}
	listings := []models.Listing{}
	for _, f := range favs {
		l, err := s.listings.GetListing(ctx, f.ListingID)
		if errors.Is(err, ErrListingNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, nil
}
