package models

import "time"

// Favorite marks a listing saved by a user.
type Favorite struct {
	Base      `bson:",inline"`
	UserID    string    `bson:"user_id" json:"user_id"`
	ListingID string    `bson:"listing_id" json:"listing_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
