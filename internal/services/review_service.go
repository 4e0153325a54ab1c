package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/db"
	"idleassets/api/internal/models"
)

// ListingReviewLimit is how many reviews a listing page shows.
const ListingReviewLimit = 10

type IReviewService interface {
	ListForListing(ctx context.Context, listingID string) ([]models.Review, error)
	CreateReview(ctx context.Context, rentalID, reviewerID string, rating int, comment string) (*models.Review, error)
}

const reviewsCollection = "reviews"

type reviewService struct {
	db       *mongo.Database
	rentals  IRentalService
	profiles IProfileService
}

func NewReviewService(db *mongo.Database, rentals IRentalService, profiles IProfileService) IReviewService {
	return &reviewService{db: db, rentals: rentals, profiles: profiles}
}

// ListForListing returns the newest reviews of a listing with reviewer summaries.
func (s *reviewService) ListForListing(ctx context.Context, listingID string) ([]models.Review, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(ListingReviewLimit)
	cursor, err := s.db.Collection(reviewsCollection).Find(ctx, bson.M{"listing_id": listingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	reviews := []models.Review{}
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	ids := make([]string, len(reviews))
	for i := range reviews {
		ids[i] = reviews[i].ReviewerID
	}
	profiles, err := s.profiles.Summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].Reviewer = profileOrPlaceholder(profiles, reviews[i].ReviewerID)
	}
	return reviews, nil
}

// CreateReview records the renter's review of a completed rental and
// refreshes the listing's rating.
func (s *reviewService) CreateReview(ctx context.Context, rentalID, reviewerID string, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}
	r, err := s.rentals.GetRental(ctx, rentalID, reviewerID)
	if err != nil {
		return nil, err
	}
	if r.RenterID != reviewerID || r.Status != models.RentalCompleted {
		return nil, ErrReviewNotAllowed
	}

	review := &models.Review{
		Base:       models.NewBase(),
		RentalID:   rentalID,
		ListingID:  r.ListingID,
		ReviewerID: reviewerID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.db.Collection(reviewsCollection).InsertOne(ctx, review); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrAlreadyReviewed
		}
		return nil, fmt.Errorf("failed to insert review: %w", err)
	}
	if err := s.refreshListingRating(ctx, r.ListingID); err != nil {
		return nil, err
	}
	return review, nil
}

func (s *reviewService) refreshListingRating(ctx context.Context, listingID string) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"listing_id": listingID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"avg":   bson.M{"$avg": "$rating"},
			"count": bson.M{"$sum": 1},
		}}},
	}
	cursor, err := s.db.Collection(reviewsCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to aggregate reviews of %s: %w", listingID, err)
	}
	var rows []struct {
		Avg   float64 `bson:"avg"`
		Count int     `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return fmt.Errorf("failed to decode review totals: %w", err)
	}
	var avg float64
	var count int
	if len(rows) > 0 {
		avg = math.Round(rows[0].Avg*10) / 10
		count = rows[0].Count
	}
	_, err = s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID},
		bson.M{"$set": bson.M{"avg_rating": avg, "total_reviews": count, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to update rating of listing %s: %w", listingID, err)
	}
	return nil
}
