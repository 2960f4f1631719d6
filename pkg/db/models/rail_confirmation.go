package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// RailConfirmation captures the external rail's own record of a dispatched
// payout. It exists for reconciliation; the ledger's payout status stays the
// source of truth once a terminal confirmation is durably written.
type RailConfirmation struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PendingPayoutID uuid.UUID      `gorm:"column:pending_payout_id;type:uuid;not null;uniqueIndex:ux_rail_confirmations_pending_payout_id" json:"pendingPayoutId"`
	Rail            enums.RailKind `gorm:"column:rail;type:rail_kind_enum;not null" json:"rail"`
	BatchID         string         `gorm:"column:batch_id;not null" json:"batchId"`
	Status          string         `gorm:"column:status;not null" json:"status"`
	RawStatus       string         `gorm:"column:raw_status" json:"rawStatus"`
	ConfirmedAt     time.Time      `gorm:"column:confirmed_at;not null" json:"confirmedAt"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}
