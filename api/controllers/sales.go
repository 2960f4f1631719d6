package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/api/responses"
	"github.com/inkwellmarket/inkwell-backend/api/validators"
	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
)

type saleRecorder interface {
	RecordSale(ctx context.Context, input ledger.RecordSaleInput) (*models.LedgerEntry, error)
}

type recordSaleRequest struct {
	OrderID     uuid.UUID              `json:"order_id" validate:"required"`
	Attribution saleAttributionPayload `json:"attribution"`
	BuyerID     uuid.UUID              `json:"buyer_id" validate:"required"`

	SubtotalCents int64 `json:"subtotal_cents" validate:"gte=0"`
	ShippingCents int64 `json:"shipping_cents" validate:"gte=0"`
	DiscountCents int64 `json:"discount_cents" validate:"gte=0"`

	PaymentMethod string     `json:"payment_method" validate:"required"`
	Currency      string     `json:"currency" validate:"required"`
	OccurredAt    *time.Time `json:"occurred_at,omitempty"`
}

// saleAttributionPayload carries the legacy attribution keys as sent by the
// order pipeline. The ledger writer collapses them into one seller id.
type saleAttributionPayload struct {
	SellerID *uuid.UUID `json:"seller_id,omitempty"`
	ArtistID *uuid.UUID `json:"artist_id,omitempty"`
	VendorID *uuid.UUID `json:"vendor_id,omitempty"`
	OwnerID  *uuid.UUID `json:"owner_id,omitempty"`
}

// RecordSale accepts one finalized order from the order pipeline and writes
// its ledger entry. Replays with the same order id return the original entry.
func RecordSale(svc saleRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}

		var payload recordSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		currency, err := enums.ParseCurrency(payload.Currency)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}

		occurredAt := time.Now().UTC()
		if payload.OccurredAt != nil {
			occurredAt = payload.OccurredAt.UTC()
		}

		entry, err := svc.RecordSale(r.Context(), ledger.RecordSaleInput{
			OrderID: payload.OrderID,
			Attribution: ledger.SellerAttribution{
				SellerID: payload.Attribution.SellerID,
				ArtistID: payload.Attribution.ArtistID,
				VendorID: payload.Attribution.VendorID,
				OwnerID:  payload.Attribution.OwnerID,
			},
			BuyerID:       payload.BuyerID,
			SubtotalCents: payload.SubtotalCents,
			ShippingCents: payload.ShippingCents,
			DiscountCents: payload.DiscountCents,
			PaymentMethod: method,
			Currency:      currency,
			OccurredAt:    occurredAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}
