package models

import "time"

// Review is left by a renter once a rental completes.
type Review struct {
	Base       `bson:",inline"`
	RentalID   string    `bson:"rental_id" json:"rental_id"`
	ListingID  string    `bson:"listing_id" json:"listing_id"`
	ReviewerID string    `bson:"reviewer_id" json:"reviewer_id"`
	Rating     int       `bson:"rating" json:"rating"`
	Comment    string    `bson:"comment" json:"comment"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`

	Reviewer *ProfileSummary `bson:"-" json:"reviewer,omitempty"`
}
