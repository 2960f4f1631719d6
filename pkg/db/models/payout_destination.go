package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// PayoutDestination records where a seller's money goes: which rail, and the
// rail-specific account reference (connected account id or payout email).
// Owned by the seller's account surface; the engine only reads it.
type PayoutDestination struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID   uuid.UUID      `gorm:"column:seller_id;type:uuid;not null;uniqueIndex:ux_payout_destinations_seller_id" json:"sellerId"`
	Rail       enums.RailKind `gorm:"column:rail;type:rail_kind_enum;not null" json:"rail"`
	AccountRef string         `gorm:"column:account_ref;not null" json:"accountRef"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
