package models

import (
	"fmt"
	"time"
)

// RentalStatus is the lifecycle state of a rental.
type RentalStatus string

const (
	RentalRequested       RentalStatus = "requested"
	RentalApproved        RentalStatus = "approved"
	RentalPickupConfirmed RentalStatus = "pickup_confirmed"
	RentalActive          RentalStatus = "active"
	RentalReturnPending   RentalStatus = "return_pending"
	RentalCompleted       RentalStatus = "completed"
	RentalCancelled       RentalStatus = "cancelled"
	RentalDisputed        RentalStatus = "disputed"
)

// AllRentalStatuses lists every status in lifecycle order.
var AllRentalStatuses = []RentalStatus{
	RentalRequested,
	RentalApproved,
	RentalPickupConfirmed,
	RentalActive,
	RentalReturnPending,
	RentalCompleted,
	RentalCancelled,
	RentalDisputed,
}

// Valid reports whether s is one of the known statuses.
func (s RentalStatus) Valid() bool {
	for _, known := range AllRentalStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// DateLayout is the calendar date format used for rental start and end dates.
const DateLayout = "2006-01-02"

// Rental is a booking of a listing between an owner and a renter.
type Rental struct {
	Base          `bson:",inline"`
	ListingID     string       `bson:"listing_id" json:"listing_id"`
	OwnerID       string       `bson:"owner_id" json:"owner_id"`
	RenterID      string       `bson:"renter_id" json:"renter_id"`
	Status        RentalStatus `bson:"status" json:"status"`
	StartDate     string       `bson:"start_date" json:"start_date"`
	EndDate       string       `bson:"end_date" json:"end_date"`
	TotalPrice    float64      `bson:"total_price" json:"total_price"`
	DepositAmount float64      `bson:"deposit_amount" json:"deposit_amount"`
	CreatedAt     time.Time    `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updated_at"`

	// Related rows embedded on read.
	Listing *ListingSummary `bson:"-" json:"listing,omitempty"`
	Owner   *ProfileSummary `bson:"-" json:"owner,omitempty"`
	Renter  *ProfileSummary `bson:"-" json:"renter,omitempty"`
}

// IsParticipant reports whether userID is the owner or the renter.
func (r *Rental) IsParticipant(userID string) bool {
	return userID != "" && (r.OwnerID == userID || r.RenterID == userID)
}

// Counterpart returns the other participant for userID.
func (r *Rental) Counterpart(userID string) string {
	if r.OwnerID == userID {
		return r.RenterID
	}
	return r.OwnerID
}

// RentalDays returns the number of billable days between two calendar dates.
// A same-day rental counts as one day.
func RentalDays(startDate, endDate string) (int, error) {
	start, err := time.Parse(DateLayout, startDate)
	if err != nil {
		return 0, fmt.Errorf("invalid start_date %q: %w", startDate, err)
	}
	end, err := time.Parse(DateLayout, endDate)
	if err != nil {
		return 0, fmt.Errorf("invalid end_date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("end_date %s is before start_date %s", endDate, startDate)
	}
	days := int(end.Sub(start).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days, nil
}
