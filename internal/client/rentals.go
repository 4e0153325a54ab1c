package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"idleassets/api/internal/models"
	"idleassets/api/internal/rental"
)

// SubmitTransition implements rental.Authority over PATCH /v1/rentals/:id/status.
// A refusal by the server becomes a *rental.RejectionError carrying its
// message verbatim; transport failures are returned as they are.
func (c *Client) SubmitTransition(ctx context.Context, rentalID string, target models.RentalStatus) (*models.Rental, error) {
	var committed models.Rental
	body := map[string]models.RentalStatus{"status": target}
	err := c.do(ctx, http.MethodPatch, "/v1/rentals/"+url.PathEscape(rentalID)+"/status", body, &committed, true)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, &rental.RejectionError{StatusCode: apiErr.StatusCode, Reason: apiErr.Message}
		}
		return nil, err
	}
	return &committed, nil
}

var _ rental.Authority = (*Client)(nil)
