package models

import (
	"time"
)

// Notification types created by background triggers.
const (
	NotificationRentalRequested = "rental_requested"
	NotificationRentalUpdated   = "rental_updated"
	NotificationNewMessage      = "new_message"
)

// Notification is addressed to a single user.
type Notification struct {
	Base      `bson:",inline"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Type      string    `bson:"type" json:"type"`
	Title     string    `bson:"title" json:"title"`
	Body      string    `bson:"body" json:"body"`
	Link      string    `bson:"link,omitempty" json:"link,omitempty"`
	IsRead    bool      `bson:"is_read" json:"is_read"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func (n Notification) EntryID() string { return n.ID }

// Inbound is always true: every notification is addressed to its owner.
func (n Notification) Inbound(string) bool { return true }

func (n Notification) Unread() bool { return !n.IsRead }

func (n Notification) AsRead() Notification {
	n.IsRead = true
	return n
}
