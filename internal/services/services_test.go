package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"idleassets/api/internal/config"
	"idleassets/api/internal/db"
	"idleassets/api/internal/models"
)

// recordingPublisher captures published events in memory.
type recordingPublisher struct {
	mu     sync.Mutex
	events map[string][]any
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.events == nil {
		p.events = map[string][]any{}
	}
	p.events[channel] = append(p.events[channel], v)
	return nil
}

func (p *recordingPublisher) On(channel string) []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[channel]
}

type testEnv struct {
	db            *mongo.Database
	cfg           *config.Config
	publisher     *recordingPublisher
	profiles      IProfileService
	listings      IListingService
	rentals       IRentalService
	messages      IMessageService
	notifications INotificationService
	favorites     IFavoriteService
	reviews       IReviewService
	earnings      IEarningsService
}

func testConfig() *config.Config {
	return &config.Config{
		PasswordRegexp:        "^.{8,}$",
		ServiceFeeRate:        0.15,
		DefaultSearchRadiusKm: 50,
		MaxSearchResults:      100,
		NotificationLimit:     50,
	}
}

func setupTestEnv(t *testing.T, dbName string) *testEnv {
	t.Helper()
	database := setupTestDB(t, dbName)
	require.NoError(t, db.EnsureIndexes(context.Background(), database))

	cfg := testConfig()
	pub := &recordingPublisher{}
	profiles := NewProfileService(database, cfg)
	listings := NewListingService(database, cfg, profiles)
	rentals := NewRentalService(database, cfg, listings, profiles)
	return &testEnv{
		db:            database,
		cfg:           cfg,
		publisher:     pub,
		profiles:      profiles,
		listings:      listings,
		rentals:       rentals,
		messages:      NewMessageService(database, cfg, pub, listings, profiles),
		notifications: NewNotificationService(database, cfg, pub),
		favorites:     NewFavoriteService(database, listings),
		reviews:       NewReviewService(database, rentals, profiles),
		earnings:      NewEarningsService(database),
	}
}

func (e *testEnv) createProfile(t *testing.T, email, name string) *models.Profile {
	t.Helper()
	p, err := e.profiles.CreateProfile(context.Background(), email, "correct-horse", name)
	require.NoError(t, err)
	return p
}

func (e *testEnv) createListing(t *testing.T, ownerID, title string, price float64) *models.Listing {
	t.Helper()
	l, err := e.listings.CreateListing(context.Background(), ownerID, ListingInput{
		Title:         title,
		CategoryID:    "tools-equipment",
		PricePerDay:   price,
		DepositAmount: 100,
	})
	require.NoError(t, err)
	return l
}
