package enums

import "fmt"

// CorrectionOperation maps to the correction_operation_enum enum in Postgres.
// One value per typed reconciliation operation; ad hoc repairs are not a thing.
type CorrectionOperation string

const (
	CorrectionReattributeSeller CorrectionOperation = "reattribute_seller"
	CorrectionResyncPayout      CorrectionOperation = "resync_payout"
	CorrectionResolveDispatch   CorrectionOperation = "resolve_dispatch"
)

var validCorrectionOperations = []CorrectionOperation{
	CorrectionReattributeSeller,
	CorrectionResyncPayout,
	CorrectionResolveDispatch,
}

// IsValid reports whether the value matches the canonical correction operation enum.
func (o CorrectionOperation) IsValid() bool {
	for _, candidate := range validCorrectionOperations {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseCorrectionOperation converts raw input into CorrectionOperation.
func ParseCorrectionOperation(value string) (CorrectionOperation, error) {
	for _, candidate := range validCorrectionOperations {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid correction operation %q", value)
}
