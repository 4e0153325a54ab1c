package models

import (
	"time"
)

// Conversation is a two-party message thread scoped to one listing.
type Conversation struct {
	Base           `bson:",inline"`
	ListingID      string    `bson:"listing_id" json:"listing_id"`
	Participant1ID string    `bson:"participant1_id" json:"participant1_id"`
	Participant2ID string    `bson:"participant2_id" json:"participant2_id"`
	LastMessageAt  time.Time `bson:"last_message_at" json:"last_message_at"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`

	Listing      *ListingSummary `bson:"-" json:"listing,omitempty"`
	Participant1 *ProfileSummary `bson:"-" json:"participant1,omitempty"`
	Participant2 *ProfileSummary `bson:"-" json:"participant2,omitempty"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participant1ID == userID || c.Participant2ID == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

// OrderedPair returns the two ids in a stable order so a pair maps to one conversation.
func OrderedPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message belongs to exactly one conversation. Only IsRead changes after creation.
type Message struct {
	Base           `bson:",inline"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	Content        string    `bson:"content" json:"content"`
	IsRead         bool      `bson:"is_read" json:"is_read"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

func (m Message) EntryID() string { return m.ID }

// Inbound reports whether the message was sent to userID rather than by them.
func (m Message) Inbound(userID string) bool { return m.SenderID != userID }

func (m Message) Unread() bool { return !m.IsRead }

func (m Message) AsRead() Message {
	m.IsRead = true
	return m
}
