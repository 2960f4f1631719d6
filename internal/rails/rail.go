package rails

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// SubmitParams describes a single payout submission to an external rail.
type SubmitParams struct {
	PayoutID       uuid.UUID
	SellerID       uuid.UUID
	AccountRef     string
	AmountCents    int64
	Currency       enums.Currency
	IdempotencyKey string
}

// SubmitResult is the rail's acknowledgement of an accepted payout.
type SubmitResult struct {
	BatchID     string
	RawStatus   string
	ConfirmedAt time.Time
}

// BatchStatus is the normalized outcome of a status query.
type BatchStatus string

const (
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusPending   BatchStatus = "pending"
	BatchStatusFailed    BatchStatus = "failed"
	// BatchStatusNotFound means the rail positively confirmed it has no
	// record of the submission. Only a rail that can look up by the
	// idempotency key or a stored batch id may report it; it licenses a
	// fresh submit.
	BatchStatusNotFound BatchStatus = "not_found"
	// BatchStatusUnknown means the rail cannot answer for this submission,
	// for example PayPal with no stored batch id. Callers must leave the
	// payout state untouched; it never licenses a resubmit.
	BatchStatusUnknown BatchStatus = "unknown"
)

// StatusResult reports what the rail knows about a previously submitted batch.
type StatusResult struct {
	Status      BatchStatus
	BatchID     string
	RawStatus   string
	ConfirmedAt time.Time
}

// Rail abstracts an external payment rail. Implementations must treat
// IdempotencyKey as the dedupe token: resubmitting the same key must not
// move money twice.
type Rail interface {
	Kind() enums.RailKind
	SubmitPayout(ctx context.Context, params SubmitParams) (*SubmitResult, error)
	QueryStatus(ctx context.Context, batchID string, idempotencyKey string) (*StatusResult, error)
}
