package services

import "errors"

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrProfileNotFound      = errors.New("profile not found")
	ErrListingNotFound      = errors.New("listing not found")
	ErrRentalNotFound       = errors.New("rental not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrNotParticipant       = errors.New("not a participant")
	ErrNotOwner             = errors.New("not the owner")
	ErrSelfRental           = errors.New("you cannot rent your own listing")
	ErrListingUnavailable   = errors.New("listing is not available for rent")
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	ErrStatusConflict       = errors.New("rental status changed, refresh and retry")
	ErrEmailTaken           = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPhotoConflict        = errors.New("listing photos changed, retry the upload")
	ErrTooManyPhotos        = errors.New("listing already has the maximum number of photos")
	ErrAlreadyReviewed      = errors.New("rental already reviewed")
	ErrReviewNotAllowed     = errors.New("only the renter of a completed rental can review it")
)
