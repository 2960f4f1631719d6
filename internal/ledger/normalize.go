package ledger

import (
	"github.com/google/uuid"

	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
)

// SellerAttribution carries every key upstream systems have historically used
// for the selling artist. Older order feeds still send artist_id, vendor_id
// or owner_id; this engine stores exactly one canonical seller id.
type SellerAttribution struct {
	SellerID *uuid.UUID `json:"sellerId,omitempty"`
	ArtistID *uuid.UUID `json:"artistId,omitempty"`
	VendorID *uuid.UUID `json:"vendorId,omitempty"`
	OwnerID  *uuid.UUID `json:"ownerId,omitempty"`
}

// ResolveSellerID collapses the legacy attribution keys into the canonical
// seller id. Every populated key must agree; a conflict is a validation
// failure, never a silent pick.
func ResolveSellerID(attribution SellerAttribution) (uuid.UUID, error) {
	resolved := uuid.Nil
	for _, candidate := range []*uuid.UUID{
		attribution.SellerID,
		attribution.ArtistID,
		attribution.VendorID,
		attribution.OwnerID,
	} {
		if candidate == nil || *candidate == uuid.Nil {
			continue
		}
		if resolved == uuid.Nil {
			resolved = *candidate
			continue
		}
		if resolved != *candidate {
			return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "conflicting seller attribution keys")
		}
	}
	if resolved == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "seller attribution is required")
	}
	return resolved, nil
}
