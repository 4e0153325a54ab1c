package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"idleassets/api/internal/config"
	"idleassets/api/internal/db"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

// MaxMessageLength caps the content of a single message.
const MaxMessageLength = 4000

// IMessageService defines conversation and message operations.
type IMessageService interface {
	ListConversations(ctx context.Context, userID string) ([]models.Conversation, error)
	StartConversation(ctx context.Context, userID, otherID, listingID string) (*models.Conversation, error)
	GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error)
	SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error)
}

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

type messageService struct {
	db        *mongo.Database
	cfg       *config.Config
	publisher realtime.Publisher
	listings  IListingService
	profiles  IProfileService
}

func NewMessageService(db *mongo.Database, cfg *config.Config, publisher realtime.Publisher, listings IListingService, profiles IProfileService) IMessageService {
	return &messageService{db: db, cfg: cfg, publisher: publisher, listings: listings, profiles: profiles}
}

// ListConversations returns the user's conversations, most recently active first.
func (s *messageService) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"participant1_id": userID},
		bson.M{"participant2_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := s.db.Collection(conversationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	convos := []models.Conversation{}
	if err := cursor.All(ctx, &convos); err != nil {
		return nil, fmt.Errorf("failed to decode conversations: %w", err)
	}
	ptrs := make([]*models.Conversation, len(convos))
	for i := range convos {
		ptrs[i] = &convos[i]
	}
	if err := s.enrich(ctx, ptrs); err != nil {
		return nil, err
	}
	return convos, nil
}

// StartConversation returns the conversation between the two users about the
// listing, creating it on first use. One of the two must own the listing.
func (s *messageService) StartConversation(ctx context.Context, userID, otherID, listingID string) (*models.Conversation, error) {
	if otherID == "" || otherID == userID {
		return nil, fmt.Errorf("%w: a conversation needs two different participants", ErrInvalidInput)
	}
	listing, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != userID && listing.OwnerID != otherID {
		return nil, fmt.Errorf("%w: one participant must own the listing", ErrInvalidInput)
	}

	p1, p2 := models.OrderedPair(userID, otherID)
	filter := bson.M{"listing_id": listingID, "participant1_id": p1, "participant2_id": p2}
	collection := s.db.Collection(conversationsCollection)

	var convo models.Conversation
	// A concurrent first message can create the conversation between our find
	// and insert; the unique index rejects ours and the retry finds theirs.
	err = db.Try(ctx, func(ctx context.Context) error {
		findErr := collection.FindOne(ctx, filter).Decode(&convo)
		if findErr == nil {
			return nil
		}
		if !errors.Is(findErr, mongo.ErrNoDocuments) {
			return findErr
		}
		now := time.Now().UTC()
		convo = models.Conversation{
			Base:           models.NewBase(),
			ListingID:      listingID,
			Participant1ID: p1,
			Participant2ID: p2,
			LastMessageAt:  now,
			CreatedAt:      now,
		}
		_, insertErr := collection.InsertOne(ctx, &convo)
		return insertErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation on listing %s: %w", listingID, err)
	}

	if err := s.enrich(ctx, []*models.Conversation{&convo}); err != nil {
		log.Printf("MessageService: failed to enrich conversation %s: %v", convo.ID, err)
	}
	return &convo, nil
}

func (s *messageService) GetConversation(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	var convo models.Conversation
	err := s.db.Collection(conversationsCollection).FindOne(ctx, bson.M{"_id": conversationID}).Decode(&convo)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error finding conversation %s: %w", conversationID, err)
	}
	if !convo.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return &convo, nil
}

// ListMessages returns the conversation's messages oldest first.
func (s *messageService) ListMessages(ctx context.Context, conversationID, userID string) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	messages := []models.Message{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// SendMessage stores a message, bumps the conversation and publishes the
// insert on the conversation's channel.
func (s *messageService) SendMessage(ctx context.Context, conversationID, senderID, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if len(content) > MaxMessageLength {
		return nil, fmt.Errorf("%w: message is longer than %d characters", ErrInvalidInput, MaxMessageLength)
	}
	if _, err := s.GetConversation(ctx, conversationID, senderID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		Base:           models.NewSortableBase(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      now,
	}
	if _, err := s.db.Collection(messagesCollection).InsertOne(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	_, err := s.db.Collection(conversationsCollection).UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$set": bson.M{"last_message_at": now}},
	)
	if err != nil {
		log.Printf("MessageService: failed to bump conversation %s: %v", conversationID, err)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, realtime.MessagesChannel(conversationID), msg); err != nil {
			log.Printf("MessageService: %v", err)
		}
	}
	return msg, nil
}

// MarkConversationRead marks every message the user received in the
// conversation as read. Own messages are never touched.
func (s *messageService) MarkConversationRead(ctx context.Context, conversationID, userID string) (int64, error) {
	if _, err := s.GetConversation(ctx, conversationID, userID); err != nil {
		return 0, err
	}
	res, err := s.db.Collection(messagesCollection).UpdateMany(ctx,
		bson.M{"conversation_id": conversationID, "sender_id": bson.M{"$ne": userID}, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation %s read: %w", conversationID, err)
	}
	return res.ModifiedCount, nil
}

func (s *messageService) enrich(ctx context.Context, convos []*models.Conversation) error {
	if len(convos) == 0 {
		return nil
	}
	listingIDs := make([]string, 0, len(convos))
	userIDs := make([]string, 0, 2*len(convos))
	for _, c := range convos {
		listingIDs = append(listingIDs, c.ListingID)
		userIDs = append(userIDs, c.Participant1ID, c.Participant2ID)
	}
	listings, err := s.listings.Summaries(ctx, listingIDs)
	if err != nil {
		return err
	}
	profiles, err := s.profiles.Summaries(ctx, userIDs)
	if err != nil {
		return err
	}
	for _, c := range convos {
		c.Listing = listingOrPlaceholder(listings, c.ListingID)
		c.Participant1 = profileOrPlaceholder(profiles, c.Participant1ID)
		c.Participant2 = profileOrPlaceholder(profiles, c.Participant2ID)
	}
	return nil
}
