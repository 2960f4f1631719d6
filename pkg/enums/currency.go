package enums

import "fmt"

// Currency maps to the currency_enum enum in Postgres. The ledger settles in
// a single currency; the enum exists so a second settlement currency is a
// migration, not a refactor.
type Currency string

const (
	CurrencyGBP Currency = "GBP"
)

var validCurrencies = []Currency{
	CurrencyGBP,
}

// IsValid reports whether the value matches the canonical currency enum.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCurrency converts raw input into Currency.
func ParseCurrency(value string) (Currency, error) {
	for _, candidate := range validCurrencies {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
