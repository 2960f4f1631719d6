package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// LedgerEntryRecordedEvent signals a sale has been written to the ledger.
type LedgerEntryRecordedEvent struct {
	EntryID           uuid.UUID           `json:"entry_id"`
	OrderID           uuid.UUID           `json:"order_id"`
	SellerID          uuid.UUID           `json:"seller_id"`
	GrossTotalCents   int64               `json:"gross_total_cents"`
	TotalFeesCents    int64               `json:"total_fees_cents"`
	ArtistPayoutCents int64               `json:"artist_payout_cents"`
	Currency          enums.Currency      `json:"currency"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	NeedsReview       bool                `json:"needs_review"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

// PayoutQueuedEvent is emitted when an aggregated payout becomes dispatchable.
type PayoutQueuedEvent struct {
	PayoutID    uuid.UUID      `json:"payout_id"`
	SellerID    uuid.UUID      `json:"seller_id"`
	AmountCents int64          `json:"amount_cents"`
	Rail        enums.RailKind `json:"rail"`
	EntryCount  int            `json:"entry_count"`
}

// PayoutCompletedEvent surfaces the rail confirmation for a finished payout.
type PayoutCompletedEvent struct {
	PayoutID    uuid.UUID      `json:"payout_id"`
	SellerID    uuid.UUID      `json:"seller_id"`
	AmountCents int64          `json:"amount_cents"`
	Rail        enums.RailKind `json:"rail"`
	BatchID     string         `json:"batch_id"`
	ConfirmedAt time.Time      `json:"confirmed_at"`
}

// PayoutManualReviewEvent is emitted when a payout exhausts its retries or
// hits a permanent rail failure and needs an operator.
type PayoutManualReviewEvent struct {
	PayoutID  uuid.UUID      `json:"payout_id"`
	SellerID  uuid.UUID      `json:"seller_id"`
	Rail      enums.RailKind `json:"rail"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error,omitempty"`
}

// CorrectionAppliedEvent records an admin correction against the ledger.
type CorrectionAppliedEvent struct {
	CorrectionID uuid.UUID                 `json:"correction_id"`
	Operation    enums.CorrectionOperation `json:"operation"`
	TargetKind   string                    `json:"target_kind"`
	TargetID     uuid.UUID                 `json:"target_id"`
	Actor        string                    `json:"actor"`
	Reason       string                    `json:"reason"`
}
