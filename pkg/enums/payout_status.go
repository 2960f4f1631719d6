package enums

import "fmt"

// PayoutStatus maps to the payout_status_enum enum in Postgres. It tracks
// where a single ledger entry sits in the payout lifecycle and only ever
// moves forward.
type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusQueued  PayoutStatus = "queued"
	PayoutStatusPaid    PayoutStatus = "paid"
	PayoutStatusFailed  PayoutStatus = "failed"
)

var validPayoutStatuses = []PayoutStatus{
	PayoutStatusPending,
	PayoutStatusQueued,
	PayoutStatusPaid,
	PayoutStatusFailed,
}

// IsValid reports whether the value matches the canonical payout status enum.
func (s PayoutStatus) IsValid() bool {
	for _, candidate := range validPayoutStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePayoutStatus converts raw input into PayoutStatus.
func ParsePayoutStatus(value string) (PayoutStatus, error) {
	for _, candidate := range validPayoutStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payout status %q", value)
}

// CanTransitionTo enforces forward-only movement of the entry lifecycle.
// Failed entries may be re-queued, nothing else moves backward.
func (s PayoutStatus) CanTransitionTo(next PayoutStatus) bool {
	switch s {
	case PayoutStatusPending:
		return next == PayoutStatusQueued
	case PayoutStatusQueued:
		return next == PayoutStatusPaid || next == PayoutStatusFailed
	case PayoutStatusFailed:
		return next == PayoutStatusQueued
	default:
		return false
	}
}
