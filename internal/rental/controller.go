package rental

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"idleassets/api/internal/models"
)

var (
	// ErrUnknownRental is returned when the controller has no cached rental with the given id.
	ErrUnknownRental = errors.New("rental not loaded")
	// ErrTransport wraps network failures reaching the authority.
	ErrTransport = errors.New("could not reach the server, please try again")
)

// RejectionError is returned when the authority refused a transition.
// Reason is the authority's message, unaltered.
type RejectionError struct {
	StatusCode int
	Reason     string
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Authority validates and commits status transitions.
type Authority interface {
	// SubmitTransition asks the authority to move the rental to target. It
	// returns the committed rental, a *RejectionError when refused, or any
	// other error when the request itself failed.
	SubmitTransition(ctx context.Context, rentalID string, target models.RentalStatus) (*models.Rental, error)
}

// Controller caches the rentals one viewer sees and applies their transitions.
type Controller struct {
	authority Authority
	viewerID  string

	mu      sync.RWMutex
	rentals map[string]*models.Rental
	order   []string
}

func NewController(authority Authority, viewerID string) *Controller {
	return &Controller{
		authority: authority,
		viewerID:  viewerID,
		rentals:   make(map[string]*models.Rental),
	}
}

// Load replaces the cache with rentals, keeping their order.
func (c *Controller) Load(rentals []models.Rental) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.rentals = make(map[string]*models.Rental, len(rentals))
	c.order = c.order[:0]
	for i := range rentals {
		r := rentals[i]
		if _, dup := c.rentals[r.ID]; !dup {
			c.order = append(c.order, r.ID)
		}
		c.rentals[r.ID] = &r
	}
}

// Rentals returns copies of the cached rentals in load order.
func (c *Controller) Rentals() []models.Rental {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Rental, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.rentals[id])
	}
	return out
}

// Get returns a copy of the cached rental.
func (c *Controller) Get(rentalID string) (models.Rental, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.rentals[rentalID]
	if !ok {
		return models.Rental{}, false
	}
	return *r, true
}

// Actions returns the transitions the viewer may take on a cached rental.
func (c *Controller) Actions(rentalID string) ([]Action, error) {
	r, ok := c.Get(rentalID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRental, rentalID)
	}
	return Actions(r.Status, r.OwnerID == c.viewerID), nil
}

// Apply submits a transition to the authority. The cached status changes only
// when the authority accepts; no local check is made against Actions.
// Network failures are wrapped in ErrTransport. Any other error, such as a
// missing credential, is returned as the authority reported it.
func (c *Controller) Apply(ctx context.Context, rentalID string, target models.RentalStatus) (models.Rental, error) {
	if _, ok := c.Get(rentalID); !ok {
		return models.Rental{}, fmt.Errorf("%w: %s", ErrUnknownRental, rentalID)
	}

	committed, err := c.authority.SubmitTransition(ctx, rentalID, target)
	if err != nil {
		var rej *RejectionError
		if errors.As(err, &rej) {
			return models.Rental{}, rej
		}
		if isTransportFailure(err) {
			return models.Rental{}, fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return models.Rental{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rentals[rentalID]
	if !ok {
		return models.Rental{}, fmt.Errorf("%w: %s", ErrUnknownRental, rentalID)
	}
	r.Status = target
	if committed != nil {
		if committed.Status.Valid() {
			r.Status = committed.Status
		}
		if !committed.UpdatedAt.IsZero() {
			r.UpdatedAt = committed.UpdatedAt
		}
	}
	return *r, nil
}

func isTransportFailure(err error) bool {
	if errors.Is(err, ErrTransport) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
