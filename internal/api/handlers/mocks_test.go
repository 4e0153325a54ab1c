package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"idleassets/api/internal/models"
	"idleassets/api/internal/services"
)

// --- Mocks ---

// MockProfileService
type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) CreateProfile(ctx context.Context, email, password, fullName string) (*models.Profile, error) {
	args := m.Called(ctx, email, password, fullName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) Authenticate(ctx context.Context, email, password string) (*models.Profile, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) UpdateProfile(ctx context.Context, userID string, update services.ProfileUpdate) (*models.Profile, error) {
	args := m.Called(ctx, userID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) SetAvatarURL(ctx context.Context, userID, avatarURL string) (*models.Profile, error) {
	args := m.Called(ctx, userID, avatarURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}

func (m *MockProfileService) Summaries(ctx context.Context, userIDs []string) (map[string]*models.ProfileSummary, error) {
	args := m.Called(ctx, userIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*models.ProfileSummary), args.Error(1)
}

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, ownerID string, in services.ListingInput) (*models.Listing, error) {
	args := m.Called(ctx, ownerID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) GetListing(ctx context.Context, listingID string) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) SearchListings(ctx context.Context, q services.ListingQuery) ([]models.Listing, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) ListByOwner(ctx context.Context, ownerID string) ([]models.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

func (m *MockListingService) NextPhotoSlot(ctx context.Context, listingID, ownerID string) (int, error) {
	args := m.Called(ctx, listingID, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockListingService) AddPhoto(ctx context.Context, listingID, ownerID string, slot int, photoURL string) (*models.Listing, error) {
	args := m.Called(ctx, listingID, ownerID, slot, photoURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}

func (m *MockListingService) IncrementRentals(ctx context.Context, listingID string) error {
	return m.Called(ctx, listingID).Error(0)
}

func (m *MockListingService) Summaries(ctx context.Context, listingIDs []string) (map[string]*models.ListingSummary, error) {
	args := m.Called(ctx, listingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*models.ListingSummary), args.Error(1)
}

// MockRentalService
type MockRentalService struct {
	mock.Mock
}

func (m *MockRentalService) CreateRental(ctx context.Context, renterID, listingID, startDate, endDate string) (*models.Rental, error) {
	args := m.Called(ctx, renterID, listingID, startDate, endDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}

func (m *MockRentalService) UpdateStatus(ctx context.Context, rentalID, actorID string, target models.RentalStatus) (*models.Rental, error) {
	args := m.Called(ctx, rentalID, actorID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}

func (m *MockRentalService) ListRentals(ctx context.Context, userID, role string) ([]models.Rental, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Rental), args.Error(1)
}

func (m *MockRentalService) GetRental(ctx context.Context, rentalID, viewerID string) (*models.Rental, error) {
	args := m.Called(ctx, rentalID, viewerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Rental), args.Error(1)
}

// MockEarningsService
type MockEarningsService struct {
	mock.Mock
}

func (m *MockEarningsService) GetEarnings(ctx context.Context, ownerID string) (*models.Earnings, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Earnings), args.Error(1)
}

// MockMessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Conversation), args.Error(1)
}

func (m *MockMessageService) StartConversation(ctx context.Context, userID, otherID, listingID string) (*models.Conversation, error) {
	args := m.Called(ctx, userID, otherID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageService) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *MockMessageService) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}

func (m *MockMessageService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageService) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Notification), args.Error(1)
}

func (m *MockNotificationService) Create(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *MockNotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return m.Called(ctx, userID, notificationID).Error(0)
}

func (m *MockNotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockCategoryService
type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

// MockFavoriteService
type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) AddFavorite(ctx context.Context, userID, listingID string) error {
	return m.Called(ctx, userID, listingID).Error(0)
}

func (m *MockFavoriteService) RemoveFavorite(ctx context.Context, userID, listingID string) error {
	return m.Called(ctx, userID, listingID).Error(0)
}

func (m *MockFavoriteService) IsFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	args := m.Called(ctx, userID, listingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFavoriteService) ListFavorites(ctx context.Context, userID string) ([]models.Listing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

// MockReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) ListForListing(ctx context.Context, listingID string) ([]models.Review, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockReviewService) CreateReview(ctx context.Context, rentalID, reviewerID string, rating int, comment string) (*models.Review, error) {
	args := m.Called(ctx, rentalID, reviewerID, rating, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

// MockRevoker
type MockRevoker struct {
	mock.Mock
}

func (m *MockRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	return m.Called(ctx, tokenID, until).Error(0)
}

func (m *MockRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// MockBlobStorage
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Upload(ctx context.Context, path, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStorage) Download(ctx context.Context, path string) ([]byte, string, error) {
	args := m.Called(ctx, path)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.String(1), args.Error(2)
}

func (m *MockBlobStorage) PublicURL(path string) string {
	return m.Called(path).String(0)
}

// MockEnqueuer
type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// taskOfType matches an enqueued task by its type name.
func taskOfType(typename string) interface{} {
	return mock.MatchedBy(func(t *asynq.Task) bool { return t.Type() == typename })
}
