package enums

import "fmt"

// RailKind maps to the rail_kind_enum enum in Postgres. Each kind names an
// external payment rail the dispatcher can move money through.
type RailKind string

const (
	RailKindStripeConnect RailKind = "stripe_connect"
	RailKindPayPalPayouts RailKind = "paypal_payouts"
)

var validRailKinds = []RailKind{
	RailKindStripeConnect,
	RailKindPayPalPayouts,
}

// IsValid reports whether the value matches the canonical rail kind enum.
func (k RailKind) IsValid() bool {
	for _, candidate := range validRailKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseRailKind converts raw input into RailKind.
func ParseRailKind(value string) (RailKind, error) {
	for _, candidate := range validRailKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid rail kind %q", value)
}
