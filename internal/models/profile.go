package models

import (
	"time"
)

// Profile is a marketplace user. Email and password hash are private to the owner.
type Profile struct {
	Base            `bson:",inline"`
	Email           string    `bson:"email" json:"email,omitempty"`
	PasswordHash    string    `bson:"password" json:"-"`
	FullName        string    `bson:"full_name" json:"full_name"`
	Bio             string    `bson:"bio" json:"bio"`
	Phone           string    `bson:"phone" json:"phone,omitempty"`
	AvatarURL       *string   `bson:"avatar_url,omitempty" json:"avatar_url"`
	TrustScore      float64   `bson:"trust_score" json:"trust_score"`
	IsIDVerified    bool      `bson:"is_id_verified" json:"is_id_verified"`
	StripeAccountID *string   `bson:"stripe_account_id,omitempty" json:"stripe_account_id"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// ProfileSummary is the public, embedded form of a profile.
type ProfileSummary struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	AvatarURL  *string `json:"avatar_url"`
	TrustScore float64 `json:"trust_score"`
}

// PlaceholderProfileName is shown when a referenced profile no longer exists.
const PlaceholderProfileName = "Unknown user"

// Summary returns the public form of the profile.
func (p *Profile) Summary() *ProfileSummary {
	return &ProfileSummary{ID: p.ID, FullName: p.FullName, AvatarURL: p.AvatarURL, TrustScore: p.TrustScore}
}

// Public strips private fields for display to other users.
func (p *Profile) Public() *Profile {
	c := *p
	c.Email = ""
	c.Phone = ""
	c.StripeAccountID = nil
	return &c
}

// PlaceholderProfile stands in for a profile that could not be loaded.
func PlaceholderProfile(id string) *ProfileSummary {
	return &ProfileSummary{ID: id, FullName: PlaceholderProfileName}
}

// User is the signed-in principal as seen by the identity provider.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Earnings aggregates an owner's income from rentals.
type Earnings struct {
	TotalEarned     float64 `json:"total_earned"`
	PendingAmount   float64 `json:"pending_amount"`
	AvailableAmount float64 `json:"available_amount"`
	TotalRentals    int     `json:"total_rentals"`
}
