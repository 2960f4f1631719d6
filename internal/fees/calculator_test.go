package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	calc, err := NewCalculator(CalculatorParams{PlatformFeeBPS: 100})
	require.NoError(t, err)
	return calc
}

func TestComputeTwoPoundSaleOnStripe(t *testing.T) {
	calc := newTestCalculator(t)

	breakdown, err := calc.Compute(Input{
		SubtotalCents: 200,
		Rail:          enums.RailKindStripeConnect,
	})
	require.NoError(t, err)

	// Gross 200p: platform 1% = 2p, rail 2.9% + 30p = 36p, net 162p.
	assert.Equal(t, int64(200), breakdown.GrossTotalCents)
	assert.Equal(t, int64(2), breakdown.PlatformFeeCents)
	assert.Equal(t, int64(36), breakdown.RailFeeCents)
	assert.Equal(t, int64(38), breakdown.TotalFeesCents)
	assert.Equal(t, int64(162), breakdown.NetRevenueCents)
	assert.Equal(t, int64(162), breakdown.ArtistPayoutCents)
	assert.False(t, breakdown.NeedsReview)
}

func TestComputeGrossIncludesShippingMinusDiscount(t *testing.T) {
	calc := newTestCalculator(t)

	breakdown, err := calc.Compute(Input{
		SubtotalCents: 1000,
		ShippingCents: 350,
		DiscountCents: 150,
		Rail:          enums.RailKindPayPalPayouts,
	})
	require.NoError(t, err)

	// Gross 1200p: platform 1% = 12p, paypal 2% + 20p = 44p.
	assert.Equal(t, int64(1200), breakdown.GrossTotalCents)
	assert.Equal(t, int64(12), breakdown.PlatformFeeCents)
	assert.Equal(t, int64(44), breakdown.RailFeeCents)
	assert.Equal(t, int64(1144), breakdown.ArtistPayoutCents)
	assert.Equal(t, breakdown.GrossTotalCents, breakdown.TotalFeesCents+breakdown.NetRevenueCents)
}

func TestComputeClampsTinySaleToZero(t *testing.T) {
	calc := newTestCalculator(t)

	breakdown, err := calc.Compute(Input{
		SubtotalCents: 1,
		Rail:          enums.RailKindStripeConnect,
	})
	require.NoError(t, err)

	// A 1p sale cannot cover the 30p fixed rail charge. The fee fields keep
	// their schedule values so the flagged entry is self-consistent.
	assert.Equal(t, int64(1), breakdown.GrossTotalCents)
	assert.Equal(t, int64(30), breakdown.RailFeeCents)
	assert.Equal(t, int64(0), breakdown.PlatformFeeCents)
	assert.Equal(t, breakdown.RailFeeCents+breakdown.PlatformFeeCents, breakdown.TotalFeesCents)
	assert.Equal(t, int64(0), breakdown.NetRevenueCents)
	assert.Equal(t, int64(0), breakdown.ArtistPayoutCents)
	assert.True(t, breakdown.NeedsReview)
	assert.Equal(t, ReviewReasonFeesExceedGross, breakdown.ReviewReason)
}

func TestComputeRejectsInvalidInput(t *testing.T) {
	calc := newTestCalculator(t)

	cases := []struct {
		name  string
		input Input
	}{
		{"negative subtotal", Input{SubtotalCents: -1, Rail: enums.RailKindStripeConnect}},
		{"negative shipping", Input{SubtotalCents: 100, ShippingCents: -1, Rail: enums.RailKindStripeConnect}},
		{"negative discount", Input{SubtotalCents: 100, DiscountCents: -1, Rail: enums.RailKindStripeConnect}},
		{"discount exceeds gross", Input{SubtotalCents: 100, DiscountCents: 200, Rail: enums.RailKindStripeConnect}},
		{"unknown rail", Input{SubtotalCents: 100, Rail: enums.RailKind("carrier_pigeon")}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := calc.Compute(tc.input)
			assert.Error(t, err)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	calc := newTestCalculator(t)
	input := Input{SubtotalCents: 4999, ShippingCents: 299, Rail: enums.RailKindStripeConnect}

	first, err := calc.Compute(input)
	require.NoError(t, err)
	second, err := calc.Compute(input)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNewCalculatorRejectsBadBPS(t *testing.T) {
	_, err := NewCalculator(CalculatorParams{PlatformFeeBPS: -1})
	assert.Error(t, err)

	_, err = NewCalculator(CalculatorParams{PlatformFeeBPS: 10001})
	assert.Error(t, err)
}
