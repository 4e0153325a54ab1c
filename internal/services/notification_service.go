package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/config"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

// INotificationService defines notification operations.
type INotificationService interface {
	List(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	Create(ctx context.Context, n *models.Notification) error
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

const notificationsCollection = "notifications"

type notificationService struct {
	db        *mongo.Database
	cfg       *config.Config
	publisher realtime.Publisher
}

func NewNotificationService(db *mongo.Database, cfg *config.Config, publisher realtime.Publisher) INotificationService {
	return &notificationService{db: db, cfg: cfg, publisher: publisher}
}

// List returns the user's most recent notifications, oldest first, so that
// pushed inserts append to the end.
func (s *notificationService) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	max := s.cfg.NotificationLimit
	if max <= 0 {
		max = 50
	}
	if limit <= 0 || limit > max {
		limit = max
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := s.db.Collection(notificationsCollection).Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	notifications := []models.Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}
	for i, j := 0, len(notifications)-1; i < j; i, j = i+1, j-1 {
		notifications[i], notifications[j] = notifications[j], notifications[i]
	}
	return notifications, nil
}

// Create stores a notification and publishes it on the user's channel.
func (s *notificationService) Create(ctx context.Context, n *models.Notification) error {
	if n.UserID == "" || n.Type == "" || n.Title == "" {
		return fmt.Errorf("%w: notification needs user_id, type and title", ErrInvalidInput)
	}
	n.GenIDIfEmpty()
	n.IsRead = false
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.Collection(notificationsCollection).InsertOne(ctx, n); err != nil {
		return fmt.Errorf("failed to insert notification for %s: %w", n.UserID, err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, realtime.NotificationsChannel(n.UserID), n); err != nil {
			log.Printf("NotificationService: %v", err)
		}
	}
	return nil
}

func (s *notificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	res, err := s.db.Collection(notificationsCollection).UpdateOne(ctx,
		bson.M{"_id": notificationID, "user_id": userID},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification %s read: %w", notificationID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.Collection(notificationsCollection).UpdateMany(ctx,
		bson.M{"user_id": userID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications of %s read: %w", userID, err)
	}
	return res.ModifiedCount, nil
}
