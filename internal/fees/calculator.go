package fees

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// ReviewReasonFeesExceedGross flags entries whose fees would have produced a
// negative payout.
const ReviewReasonFeesExceedGross = "fees_exceed_gross"

// Input is one finalized order's money fields in minor currency units.
type Input struct {
	SubtotalCents int64
	ShippingCents int64
	DiscountCents int64
	Rail          enums.RailKind
}

// Breakdown is the full fee and revenue split for a sale. ArtistPayout is the
// seller's share; the platform keeps PlatformFee and the rail keeps RailFee.
type Breakdown struct {
	GrossTotalCents   int64
	RailFeeCents      int64
	PlatformFeeCents  int64
	TotalFeesCents    int64
	NetRevenueCents   int64
	ArtistPayoutCents int64
	NeedsReview       bool
	ReviewReason      string
}

// CalculatorParams groups configuration for the fee calculator.
type CalculatorParams struct {
	PlatformFeeBPS int64
}

// Calculator splits a gross sale amount into fees, net revenue and the
// artist's payout. Pure and deterministic; no I/O.
type Calculator struct {
	platformFeeBPS int64
}

// NewCalculator builds a fee calculator.
func NewCalculator(params CalculatorParams) (*Calculator, error) {
	if params.PlatformFeeBPS < 0 {
		return nil, fmt.Errorf("platform fee bps must be non-negative, got %d", params.PlatformFeeBPS)
	}
	if params.PlatformFeeBPS > 10000 {
		return nil, fmt.Errorf("platform fee bps must not exceed 10000, got %d", params.PlatformFeeBPS)
	}
	return &Calculator{platformFeeBPS: params.PlatformFeeBPS}, nil
}

// Compute produces the fee breakdown for one order. The percentage components
// round half up to the nearest minor unit. When the combined fees would exceed
// the gross, the payout clamps to zero and the breakdown is flagged for manual
// review instead of going negative.
func (c *Calculator) Compute(input Input) (Breakdown, error) {
	if input.SubtotalCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "subtotal must be non-negative")
	}
	if input.ShippingCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping must be non-negative")
	}
	if input.DiscountCents < 0 {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "discount must be non-negative")
	}
	if input.DiscountCents > input.SubtotalCents+input.ShippingCents {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, "discount exceeds subtotal plus shipping")
	}
	if !input.Rail.IsValid() {
		return Breakdown{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown rail %q", input.Rail))
	}

	gross := input.SubtotalCents + input.ShippingCents - input.DiscountCents

	schedule, err := rails.ScheduleFor(input.Rail)
	if err != nil {
		return Breakdown{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve rail fee schedule")
	}
	railFee := schedule.Fee(gross)
	platformFee := c.platformFee(gross)
	totalFees := railFee + platformFee

	breakdown := Breakdown{
		GrossTotalCents:  gross,
		RailFeeCents:     railFee,
		PlatformFeeCents: platformFee,
		TotalFeesCents:   totalFees,
	}

	if totalFees > gross {
		// Keep totalFees as the true component sum so the flagged entry
		// stays self-consistent; the zeroed net and the review flag carry
		// the discrepancy for the operator.
		breakdown.NetRevenueCents = 0
		breakdown.ArtistPayoutCents = 0
		breakdown.NeedsReview = true
		breakdown.ReviewReason = ReviewReasonFeesExceedGross
		return breakdown, nil
	}

	breakdown.NetRevenueCents = gross - totalFees
	breakdown.ArtistPayoutCents = breakdown.NetRevenueCents
	return breakdown, nil
}

func (c *Calculator) platformFee(grossCents int64) int64 {
	return decimal.NewFromInt(grossCents).
		Mul(decimal.NewFromInt(c.platformFeeBPS)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}
