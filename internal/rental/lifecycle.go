// Package rental holds the rental lifecycle: which transitions each party may
// take from a given status, and a client-side controller that applies them
// through an external authority.
package rental

import (
	"idleassets/api/internal/models"
)

// Action is a transition a party may request from the current status.
type Action struct {
	Label        string              `json:"label"`
	TargetStatus models.RentalStatus `json:"status"`
}

type roleActions struct {
	owner  []Action
	renter []Action
}

var table = map[models.RentalStatus]roleActions{
	models.RentalRequested: {
		owner: []Action{
			{Label: "Approve", TargetStatus: models.RentalApproved},
			{Label: "Decline", TargetStatus: models.RentalCancelled},
		},
		renter: []Action{
			{Label: "Cancel", TargetStatus: models.RentalCancelled},
		},
	},
	models.RentalApproved: {
		renter: []Action{
			{Label: "Confirm Pickup", TargetStatus: models.RentalPickupConfirmed},
		},
	},
	models.RentalPickupConfirmed: {
		owner: []Action{
			{Label: "Mark Active", TargetStatus: models.RentalActive},
		},
	},
	models.RentalActive: {
		renter: []Action{
			{Label: "Return Item", TargetStatus: models.RentalReturnPending},
		},
	},
	models.RentalReturnPending: {
		owner: []Action{
			{Label: "Confirm Return", TargetStatus: models.RentalCompleted},
			{Label: "Dispute", TargetStatus: models.RentalDisputed},
		},
	},
}

// Actions returns the transitions available to the owner (isOwner) or the
// renter for a rental in status. Terminal and unknown statuses yield an empty
// list. The returned slice belongs to the caller.
func Actions(status models.RentalStatus, isOwner bool) []Action {
	ra := table[status]
	src := ra.renter
	if isOwner {
		src = ra.owner
	}
	out := make([]Action, len(src))
	copy(out, src)
	return out
}

// Permits reports whether target is among the actions offered for status.
func Permits(status models.RentalStatus, isOwner bool, target models.RentalStatus) bool {
	for _, a := range Actions(status, isOwner) {
		if a.TargetStatus == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no party can move a rental out of status.
func IsTerminal(status models.RentalStatus) bool {
	switch status {
	case models.RentalCompleted, models.RentalCancelled, models.RentalDisputed:
		return true
	}
	return false
}

// CanTransition reports whether either party may move a rental from one status to another.
func CanTransition(from, to models.RentalStatus) bool {
	return Permits(from, true, to) || Permits(from, false, to)
}
