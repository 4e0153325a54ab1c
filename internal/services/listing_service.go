package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/config"
	"idleassets/api/internal/models"
)

// MaxListingPhotos caps the photos attached to one listing.
const MaxListingPhotos = 8

// ListingInput carries the fields of a new listing.
type ListingInput struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	CategoryID         string   `json:"category_id"`
	PricePerDay        float64  `json:"price_per_day"`
	DepositAmount      float64  `json:"deposit_amount"`
	Condition          string   `json:"condition"`
	PickupInstructions string   `json:"pickup_instructions"`
	AddressText        string   `json:"address_text"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
}

// Validate checks the required fields and value ranges.
func (in *ListingInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.CategoryID = strings.TrimSpace(in.CategoryID)
	switch {
	case in.Title == "":
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	case in.CategoryID == "":
		return fmt.Errorf("%w: category_id is required", ErrInvalidInput)
	case !models.IsDefaultCategory(in.CategoryID):
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.CategoryID)
	case in.PricePerDay <= 0:
		return fmt.Errorf("%w: price_per_day must be positive", ErrInvalidInput)
	case in.DepositAmount < 0:
		return fmt.Errorf("%w: deposit_amount cannot be negative", ErrInvalidInput)
	case (in.Latitude == nil) != (in.Longitude == nil):
		return fmt.Errorf("%w: latitude and longitude go together", ErrInvalidInput)
	}
	if in.Latitude != nil && (*in.Latitude < -90 || *in.Latitude > 90 || *in.Longitude < -180 || *in.Longitude > 180) {
		return fmt.Errorf("%w: coordinates out of range", ErrInvalidInput)
	}
	return nil
}

// ListingQuery filters a listing search. Zero values mean no filter.
type ListingQuery struct {
	Query    string
	Category string
	Lat      *float64
	Lng      *float64
	RadiusKm float64
	Limit    int
}

// IListingService defines the interface for listing-related operations.
type IListingService interface {
	CreateListing(ctx context.Context, ownerID string, in ListingInput) (*models.Listing, error)
	GetListing(ctx context.Context, listingID string) (*models.Listing, error)
	SearchListings(ctx context.Context, q ListingQuery) ([]models.Listing, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error)
	NextPhotoSlot(ctx context.Context, listingID, ownerID string) (int, error)
	AddPhoto(ctx context.Context, listingID, ownerID string, slot int, photoURL string) (*models.Listing, error)
	IncrementRentals(ctx context.Context, listingID string) error
	Summaries(ctx context.Context, listingIDs []string) (map[string]*models.ListingSummary, error)
}

const listingsCollection = "listings"

type listingService struct {
	db       *mongo.Database
	cfg      *config.Config
	profiles IProfileService
}

func NewListingService(db *mongo.Database, cfg *config.Config, profiles IProfileService) IListingService {
	return &listingService{db: db, cfg: cfg, profiles: profiles}
}

func (s *listingService) CreateListing(ctx context.Context, ownerID string, in ListingInput) (*models.Listing, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	listing := &models.Listing{
		Base:               models.NewBase(),
		OwnerID:            ownerID,
		Title:              in.Title,
		Description:        strings.TrimSpace(in.Description),
		CategoryID:         in.CategoryID,
		PricePerDay:        in.PricePerDay,
		DepositAmount:      in.DepositAmount,
		Condition:          in.Condition,
		PickupInstructions: in.PickupInstructions,
		AddressText:        in.AddressText,
		IsAvailable:        true,
		Photos:             []models.ListingPhoto{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.Latitude != nil {
		listing.Location = models.NewPoint(*in.Latitude, *in.Longitude)
	}

	if _, err := s.db.Collection(listingsCollection).InsertOne(ctx, listing); err != nil {
		return nil, fmt.Errorf("failed to insert listing for owner %s: %w", ownerID, err)
	}
	log.Printf("ListingService: owner %s created listing %s", ownerID, listing.ID)
	return listing, nil
}

func (s *listingService) findListing(ctx context.Context, listingID string) (*models.Listing, error) {
	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOne(ctx, bson.M{"_id": listingID}).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding listing %s: %w", listingID, err)
	}
	return &listing, nil
}

// GetListing returns the listing with its owner's public summary.
func (s *listingService) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if err := s.attachOwners(ctx, []*models.Listing{listing}); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *listingService) SearchListings(ctx context.Context, q ListingQuery) ([]models.Listing, error) {
	filter := searchFilter(q, s.cfg.DefaultSearchRadiusKm)

	limit := q.Limit
	maxResults := s.cfg.MaxSearchResults
	if maxResults <= 0 {
		maxResults = 100
	}
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}
	opts := options.Find().SetLimit(int64(limit))
	if _, geo := filter["location"]; !geo {
		// $nearSphere already orders by distance.
		opts.SetSort(bson.D{{Key: "created_at", Value: -1}})
	}
	return s.findListings(ctx, filter, opts)
}

// searchFilter builds the Mongo filter for q. Only available listings match.
func searchFilter(q ListingQuery, defaultRadiusKm float64) bson.M {
	filter := bson.M{"is_available": true}
	if text := strings.TrimSpace(q.Query); text != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(text), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"description": pattern},
		}
	}
	if q.Category != "" {
		filter["category_id"] = q.Category
	}
	if q.Lat != nil && q.Lng != nil {
		radius := q.RadiusKm
		if radius <= 0 {
			radius = defaultRadiusKm
		}
		filter["location"] = bson.M{
			"$nearSphere": bson.M{
				"$geometry":    models.NewPoint(*q.Lat, *q.Lng),
				"$maxDistance": radius * 1000,
			},
		}
	}
	return filter
}

func (s *listingService) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	return s.findListings(ctx, bson.M{"owner_id": ownerID}, opts)
}

func (s *listingService) findListings(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Listing, error) {
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	ptrs := make([]*models.Listing, len(listings))
	for i := range listings {
		ptrs[i] = &listings[i]
	}
	if err := s.attachOwners(ctx, ptrs); err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *listingService) attachOwners(ctx context.Context, listings []*models.Listing) error {
	if s.profiles == nil || len(listings) == 0 {
		return nil
	}
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		ids = append(ids, l.OwnerID)
	}
	owners, err := s.profiles.Summaries(ctx, ids)
	if err != nil {
		return err
	}
	for _, l := range listings {
		l.Owner = profileOrPlaceholder(owners, l.OwnerID)
	}
	return nil
}

// NextPhotoSlot returns the display order the next uploaded photo gets.
func (s *listingService) NextPhotoSlot(ctx context.Context, listingID, ownerID string) (int, error) {
	listing, err := s.findListing(ctx, listingID)
	if err != nil {
		return 0, err
	}
	if listing.OwnerID != ownerID {
		return 0, ErrNotOwner
	}
	if len(listing.Photos) >= MaxListingPhotos {
		return 0, ErrTooManyPhotos
	}
	return len(listing.Photos), nil
}

// AddPhoto appends a photo at slot. It fails with ErrPhotoConflict when
// another upload took the slot first.
func (s *listingService) AddPhoto(ctx context.Context, listingID, ownerID string, slot int, photoURL string) (*models.Listing, error) {
	filter := bson.M{"_id": listingID, "owner_id": ownerID, "photos": bson.M{"$size": slot}}
	update := bson.M{
		"$push": bson.M{"photos": models.ListingPhoto{PhotoURL: photoURL, DisplayOrder: slot}},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var listing models.Listing
	err := s.db.Collection(listingsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&listing)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, findErr := s.findListing(ctx, listingID)
		if findErr != nil {
			return nil, findErr
		}
		if current.OwnerID != ownerID {
			return nil, ErrNotOwner
		}
		return nil, ErrPhotoConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add photo to listing %s: %w", listingID, err)
	}
	return &listing, nil
}

func (s *listingService) IncrementRentals(ctx context.Context, listingID string) error {
	_, err := s.db.Collection(listingsCollection).UpdateOne(ctx,
		bson.M{"_id": listingID},
		bson.M{"$inc": bson.M{"total_rentals": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment rentals of listing %s: %w", listingID, err)
	}
	return nil
}

// Summaries loads the embedded form of the given listings. Missing listings
// are absent from the map.
func (s *listingService) Summaries(ctx context.Context, listingIDs []string) (map[string]*models.ListingSummary, error) {
	out := make(map[string]*models.ListingSummary, len(listingIDs))
	ids := uniqueIDs(listingIDs)
	if len(ids) == 0 {
		return out, nil
	}
	opts := options.Find().SetProjection(bson.M{"title": 1, "photos": bson.M{"$slice": 1}})
	cursor, err := s.db.Collection(listingsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	var listings []models.Listing
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listings: %w", err)
	}
	for i := range listings {
		out[listings[i].ID] = listings[i].Summary()
	}
	return out, nil
}

func listingOrPlaceholder(summaries map[string]*models.ListingSummary, id string) *models.ListingSummary {
	if l, ok := summaries[id]; ok {
		return l
	}
	return models.PlaceholderListing(id)
}
