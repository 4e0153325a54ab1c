package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/config"
	"idleassets/api/internal/models"
	"idleassets/api/internal/rental"
)

// Roles accepted by ListRentals.
const (
	RoleRenting = "renting"
	RoleLending = "lending"
)

// IRentalService is the authority for rental requests and status transitions.
type IRentalService interface {
	CreateRental(ctx context.Context, renterID, listingID, startDate, endDate string) (*models.Rental, error)
	UpdateStatus(ctx context.Context, rentalID, actorID string, target models.RentalStatus) (*models.Rental, error)
	ListRentals(ctx context.Context, userID, role string) ([]models.Rental, error)
	GetRental(ctx context.Context, rentalID, viewerID string) (*models.Rental, error)
}

const rentalsCollection = "rentals"

type rentalService struct {
	db       *mongo.Database
	cfg      *config.Config
	listings IListingService
	profiles IProfileService
}

func NewRentalService(db *mongo.Database, cfg *config.Config, listings IListingService, profiles IProfileService) IRentalService {
	return &rentalService{db: db, cfg: cfg, listings: listings, profiles: profiles}
}

// Quote is the price of renting a listing for a date range.
type Quote struct {
	Days          int
	Subtotal      float64
	ServiceFee    float64
	TotalPrice    float64
	DepositAmount float64
}

// QuoteRental prices a rental: days times the daily price plus the service
// fee. The deposit is taken from the listing and is not part of the total.
func QuoteRental(listing *models.Listing, startDate, endDate string, feeRate float64) (*Quote, error) {
	days, err := models.RentalDays(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	subtotal := float64(days) * listing.PricePerDay
	fee := subtotal * feeRate
	return &Quote{
		Days:          days,
		Subtotal:      roundCents(subtotal),
		ServiceFee:    roundCents(fee),
		TotalPrice:    roundCents(subtotal + fee),
		DepositAmount: roundCents(listing.DepositAmount),
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *rentalService) CreateRental(ctx context.Context, renterID, listingID, startDate, endDate string) (*models.Rental, error) {
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID == renterID {
		return nil, ErrSelfRental
	}
	if !listing.IsAvailable {
		return nil, ErrListingUnavailable
	}
	quote, err := QuoteRental(listing, startDate, endDate, s.cfg.ServiceFeeRate)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	r := &models.Rental{
		Base:          models.NewBase(),
		ListingID:     listing.ID,
		OwnerID:       listing.OwnerID,
		RenterID:      renterID,
		Status:        models.RentalRequested,
		StartDate:     startDate,
		EndDate:       endDate,
		TotalPrice:    quote.TotalPrice,
		DepositAmount: quote.DepositAmount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.Collection(rentalsCollection).InsertOne(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to insert rental for listing %s: %w", listingID, err)
	}
	log.Printf("RentalService: renter %s requested listing %s (%d days, %.2f)", renterID, listingID, quote.Days, quote.TotalPrice)

	if err := s.enrich(ctx, []*models.Rental{r}); err != nil {
		log.Printf("RentalService: failed to enrich new rental %s: %v", r.ID, err)
	}
	return r, nil
}

func (s *rentalService) findRental(ctx context.Context, rentalID string) (*models.Rental, error) {
	var r models.Rental
	err := s.db.Collection(rentalsCollection).FindOne(ctx, bson.M{"_id": rentalID}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrRentalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding rental %s: %w", rentalID, err)
	}
	return &r, nil
}

// UpdateStatus applies a transition on behalf of actorID. The write only
// succeeds while the stored status is still the one the decision was based
// on, so of two concurrent transitions from one status only the first commits.
func (s *rentalService) UpdateStatus(ctx context.Context, rentalID, actorID string, target models.RentalStatus) (*models.Rental, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, target)
	}
	current, err := s.findRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !current.IsParticipant(actorID) {
		return nil, ErrNotParticipant
	}
	isOwner := current.OwnerID == actorID
	if !rental.Permits(current.Status, isOwner, target) {
		role := "renter"
		if isOwner {
			role = "owner"
		}
		return nil, fmt.Errorf("%w: the %s cannot move a %s rental to %s", ErrTransitionNotAllowed, role, current.Status, target)
	}

	filter := bson.M{"_id": rentalID, "status": current.Status}
	update := bson.M{"$set": bson.M{"status": target, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Rental
	err = s.db.Collection(rentalsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrStatusConflict
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update rental %s: %w", rentalID, err)
	}
	log.Printf("RentalService: rental %s %s -> %s by %s", rentalID, current.Status, target, actorID)

	if target == models.RentalCompleted {
		if err := s.listings.IncrementRentals(ctx, updated.ListingID); err != nil {
			log.Printf("RentalService: %v", err)
		}
	}
	if err := s.enrich(ctx, []*models.Rental{&updated}); err != nil {
		log.Printf("RentalService: failed to enrich rental %s: %v", rentalID, err)
	}
	return &updated, nil
}

func (s *rentalService) ListRentals(ctx context.Context, userID, role string) ([]models.Rental, error) {
	var filter bson.M
	switch role {
	case RoleRenting, "":
		filter = bson.M{"renter_id": userID}
	case RoleLending:
		filter = bson.M{"owner_id": userID}
	default:
		return nil, fmt.Errorf("%w: role must be %q or %q", ErrInvalidInput, RoleRenting, RoleLending)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(rentalsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query rentals: %w", err)
	}
	rentals := []models.Rental{}
	if err := cursor.All(ctx, &rentals); err != nil {
		return nil, fmt.Errorf("failed to decode rentals: %w", err)
	}

	ptrs := make([]*models.Rental, len(rentals))
	for i := range rentals {
		ptrs[i] = &rentals[i]
	}
	if err := s.enrich(ctx, ptrs); err != nil {
		return nil, err
	}
	return rentals, nil
}

func (s *rentalService) GetRental(ctx context.Context, rentalID, viewerID string) (*models.Rental, error) {
	r, err := s.findRental(ctx, rentalID)
	if err != nil {
		return nil, err
	}
	if !r.IsParticipant(viewerID) {
		return nil, ErrNotParticipant
	}
	if err := s.enrich(ctx, []*models.Rental{r}); err != nil {
		return nil, err
	}
	return r, nil
}

// enrich embeds listing and participant summaries. Related rows that no
// longer exist are replaced by placeholders.
func (s *rentalService) enrich(ctx context.Context, rentals []*models.Rental) error {
	if len(rentals) == 0 {
		return nil
	}
	listingIDs := make([]string, 0, len(rentals))
	userIDs := make([]string, 0, 2*len(rentals))
	for _, r := range rentals {
		listingIDs = append(listingIDs, r.ListingID)
		userIDs = append(userIDs, r.OwnerID, r.RenterID)
	}
	listings, err := s.listings.Summaries(ctx, listingIDs)
	if err != nil {
		return err
	}
	profiles, err := s.profiles.Summaries(ctx, userIDs)
	if err != nil {
		return err
	}
	for _, r := range rentals {
		r.Listing = listingOrPlaceholder(listings, r.ListingID)
		r.Owner = profileOrPlaceholder(profiles, r.OwnerID)
		r.Renter = profileOrPlaceholder(profiles, r.RenterID)
	}
	return nil
}
