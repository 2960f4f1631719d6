package rails

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

// FeeSchedule is a rail's published pricing: a percentage of the gross in
// basis points plus a fixed per-transaction charge.
type FeeSchedule struct {
	Rail       enums.RailKind
	PercentBPS int64
	FixedCents int64
}

var schedules = map[enums.RailKind]FeeSchedule{
	enums.RailKindStripeConnect: {
		Rail:       enums.RailKindStripeConnect,
		PercentBPS: 290,
		FixedCents: 30,
	},
	enums.RailKindPayPalPayouts: {
		Rail:       enums.RailKindPayPalPayouts,
		PercentBPS: 200,
		FixedCents: 20,
	},
}

// ScheduleFor returns the fee schedule for a rail.
func ScheduleFor(rail enums.RailKind) (FeeSchedule, error) {
	schedule, ok := schedules[rail]
	if !ok {
		return FeeSchedule{}, fmt.Errorf("no fee schedule for rail %q", rail)
	}
	return schedule, nil
}

// Fee computes the rail fee for a gross amount in minor units. The
// percentage component rounds half up to the nearest minor unit before the
// fixed charge is added.
func (s FeeSchedule) Fee(grossCents int64) int64 {
	percent := decimal.NewFromInt(grossCents).
		Mul(decimal.NewFromInt(s.PercentBPS)).
		Div(decimal.NewFromInt(10000)).
		Round(0)
	return percent.IntPart() + s.FixedCents
}
