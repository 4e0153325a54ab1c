package models

import (
	"time"
)

// GeoJSON represents a GeoJSON Point for MongoDB.
type GeoJSON struct {
	Type        string    `bson:"type" json:"type"`               // Should be "Point"
	Coordinates []float64 `bson:"coordinates" json:"coordinates"` // [longitude, latitude]
}

// NewPoint builds a GeoJSON point from latitude and longitude.
func NewPoint(lat, lng float64) *GeoJSON {
	return &GeoJSON{Type: "Point", Coordinates: []float64{lng, lat}}
}

// ListingPhoto is a publicly reachable photo attached to a listing.
type ListingPhoto struct {
	PhotoURL     string `bson:"photo_url" json:"photo_url"`
	DisplayOrder int    `bson:"display_order" json:"display_order"`
}

// Listing is an item offered for rent by its owner.
type Listing struct {
	Base               `bson:",inline"`
	OwnerID            string         `bson:"owner_id" json:"owner_id"`
	Title              string         `bson:"title" json:"title"`
	Description        string         `bson:"description" json:"description"`
	CategoryID         string         `bson:"category_id" json:"category_id"`
	PricePerDay        float64        `bson:"price_per_day" json:"price_per_day"`
	DepositAmount      float64        `bson:"deposit_amount" json:"deposit_amount"`
	Condition          string         `bson:"condition" json:"condition"`
	PickupInstructions string         `bson:"pickup_instructions" json:"pickup_instructions"`
	AddressText        string         `bson:"address_text" json:"address_text"`
	Location           *GeoJSON       `bson:"location,omitempty" json:"location,omitempty"`
	IsAvailable        bool           `bson:"is_available" json:"is_available"`
	Photos             []ListingPhoto `bson:"photos" json:"listing_photos"`
	AvgRating          float64        `bson:"avg_rating" json:"avg_rating"`
	TotalReviews       int            `bson:"total_reviews" json:"total_reviews"`
	TotalRentals       int            `bson:"total_rentals" json:"total_rentals"`
	CreatedAt          time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time      `bson:"updated_at" json:"updated_at"`

	Owner *ProfileSummary `bson:"-" json:"owner,omitempty"`
}

// ListingSummary is the embedded form of a listing on rentals and conversations.
type ListingSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// PlaceholderListingTitle is shown when a referenced listing no longer exists.
const PlaceholderListingTitle = "Listing unavailable"

// Summary returns the embedded form of the listing.
func (l *Listing) Summary() *ListingSummary {
	s := &ListingSummary{ID: l.ID, Title: l.Title}
	if len(l.Photos) > 0 {
		s.PhotoURL = l.Photos[0].PhotoURL
	}
	return s
}

// PlaceholderListing stands in for a listing that could not be loaded.
func PlaceholderListing(id string) *ListingSummary {
	return &ListingSummary{ID: id, Title: PlaceholderListingTitle}
}
