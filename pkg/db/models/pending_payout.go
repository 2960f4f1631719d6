package models

import (
	"time"

	"github.com/google/uuid"

	dbtypes "github.com/inkwellmarket/inkwell-backend/pkg/db/types"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// PendingPayout is an aggregated payable unit owed to one seller. The
// idempotency key is derived from the seller plus the sorted source entry
// ids, so re-aggregating the same entry set can never mint a second unit.
type PendingPayout struct {
	ID             uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID       uuid.UUID                 `gorm:"column:seller_id;type:uuid;not null;index" json:"sellerId"`
	SourceEntryIDs dbtypes.UUIDArray         `gorm:"column:source_entry_ids;type:uuid[];not null" json:"sourceEntryIds"`
	AmountCents    int64                     `gorm:"column:amount_cents;not null" json:"amountCents"`
	Status         enums.PendingPayoutStatus `gorm:"column:status;type:pending_payout_status_enum;not null;index" json:"status"`
	Attempts       int                       `gorm:"column:attempts;not null;default:0" json:"attempts"`
	LastError      *string                   `gorm:"column:last_error" json:"lastError,omitempty"`
	IdempotencyKey string                    `gorm:"column:idempotency_key;not null;uniqueIndex:ux_pending_payouts_idempotency_key" json:"idempotencyKey"`
	Rail           *enums.RailKind           `gorm:"column:rail;type:rail_kind_enum" json:"rail,omitempty"`
	RailBatchID    *string                   `gorm:"column:rail_batch_id" json:"railBatchId,omitempty"`
	NextAttemptAt  *time.Time                `gorm:"column:next_attempt_at" json:"nextAttemptAt,omitempty"`
	CreatedAt      time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time                 `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
