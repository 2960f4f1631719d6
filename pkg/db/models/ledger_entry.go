package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// LedgerEntry is the immutable financial record of one completed sale. At
// most one entry exists per order; corrections reference entries through
// correction records instead of editing them.
//
// All money fields are non-negative integers in minor currency units.
type LedgerEntry struct {
	ID       uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID  uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_ledger_entries_order_id" json:"orderId"`
	SellerID uuid.UUID `gorm:"column:seller_id;type:uuid;not null;index" json:"sellerId"`
	BuyerID  uuid.UUID `gorm:"column:buyer_id;type:uuid;not null" json:"buyerId"`

	SubtotalCents     int64 `gorm:"column:subtotal_cents;not null" json:"subtotalCents"`
	ShippingCents     int64 `gorm:"column:shipping_cents;not null" json:"shippingCents"`
	DiscountCents     int64 `gorm:"column:discount_cents;not null" json:"discountCents"`
	GrossTotalCents   int64 `gorm:"column:gross_total_cents;not null" json:"grossTotalCents"`
	RailFeeCents      int64 `gorm:"column:rail_fee_cents;not null" json:"railFeeCents"`
	PlatformFeeCents  int64 `gorm:"column:platform_fee_cents;not null" json:"platformFeeCents"`
	TotalFeesCents    int64 `gorm:"column:total_fees_cents;not null" json:"totalFeesCents"`
	NetRevenueCents   int64 `gorm:"column:net_revenue_cents;not null" json:"netRevenueCents"`
	ArtistPayoutCents int64 `gorm:"column:artist_payout_cents;not null" json:"artistPayoutCents"`

	PayoutStatus  enums.PayoutStatus  `gorm:"column:payout_status;type:payout_status_enum;not null;index" json:"payoutStatus"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:payment_method_enum;not null" json:"paymentMethod"`
	Currency      enums.Currency      `gorm:"column:currency;type:currency_enum;not null" json:"currency"`

	// ReviewReason is set when fee computation could not produce a sane
	// split (fees exceeded gross) and an operator needs to look.
	ReviewReason *string `gorm:"column:review_reason" json:"reviewReason,omitempty"`

	OccurredAt time.Time `gorm:"column:occurred_at;not null;index" json:"occurredAt"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}
