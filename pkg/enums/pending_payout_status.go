package enums

import "fmt"

// PendingPayoutStatus maps to the pending_payout_status_enum enum in Postgres.
type PendingPayoutStatus string

const (
	PendingPayoutStatusAwaitingDestination PendingPayoutStatus = "awaiting_destination"
	PendingPayoutStatusQueued              PendingPayoutStatus = "queued"
	PendingPayoutStatusDispatching         PendingPayoutStatus = "dispatching"
	PendingPayoutStatusRetryPending        PendingPayoutStatus = "retry_pending"
	PendingPayoutStatusCompleted           PendingPayoutStatus = "completed"
	PendingPayoutStatusManualReview        PendingPayoutStatus = "manual_review"
)

var validPendingPayoutStatuses = []PendingPayoutStatus{
	PendingPayoutStatusAwaitingDestination,
	PendingPayoutStatusQueued,
	PendingPayoutStatusDispatching,
	PendingPayoutStatusRetryPending,
	PendingPayoutStatusCompleted,
	PendingPayoutStatusManualReview,
}

// IsValid reports whether the value matches the canonical pending payout status enum.
func (s PendingPayoutStatus) IsValid() bool {
	for _, candidate := range validPendingPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePendingPayoutStatus converts raw input into PendingPayoutStatus.
func ParsePendingPayoutStatus(value string) (PendingPayoutStatus, error) {
	for _, candidate := range validPendingPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pending payout status %q", value)
}

// IsTerminal reports whether the payable unit has reached a resting state.
// manual_review is terminal until an operator acts through reconciliation.
func (s PendingPayoutStatus) IsTerminal() bool {
	return s == PendingPayoutStatusCompleted || s == PendingPayoutStatusManualReview
}

// CanTransitionTo encodes the dispatcher state machine.
func (s PendingPayoutStatus) CanTransitionTo(next PendingPayoutStatus) bool {
	switch s {
	case PendingPayoutStatusAwaitingDestination:
		return next == PendingPayoutStatusQueued
	case PendingPayoutStatusQueued:
		return next == PendingPayoutStatusDispatching || next == PendingPayoutStatusAwaitingDestination
	case PendingPayoutStatusDispatching:
		return next == PendingPayoutStatusCompleted ||
			next == PendingPayoutStatusRetryPending ||
			next == PendingPayoutStatusManualReview
	case PendingPayoutStatusRetryPending:
		return next == PendingPayoutStatusDispatching || next == PendingPayoutStatusManualReview
	default:
		return false
	}
}
