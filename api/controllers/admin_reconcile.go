package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/api/middleware"
	"github.com/inkwellmarket/inkwell-backend/api/responses"
	"github.com/inkwellmarket/inkwell-backend/api/validators"
	"github.com/inkwellmarket/inkwell-backend/internal/reconcile"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type reconcileService interface {
	ReattributeSeller(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error)
	ResyncPayoutStatus(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error)
	ResolveDispatch(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error)
	ListCorrections(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error)
}

type reattributeRequest struct {
	EntryID     uuid.UUID `json:"entry_id" validate:"required"`
	NewSellerID uuid.UUID `json:"new_seller_id" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
	Confirm     bool      `json:"confirm"`
}

type resyncRequest struct {
	PayoutID uuid.UUID `json:"payout_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required"`
	Confirm  bool      `json:"confirm"`
}

type resolveRequest struct {
	Reason  string `json:"reason" validate:"required"`
	Confirm bool   `json:"confirm"`
}

type correctionList struct {
	Corrections []models.CorrectionRecord `json:"corrections"`
	NextCursor  *string                   `json:"next_cursor,omitempty"`
}

// AdminReattributeSeller moves a ledger entry to a different seller. Without
// confirm the response is a dry-run plan and nothing changes.
func AdminReattributeSeller(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload reattributeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.ReattributeSeller(r.Context(), reconcile.ReattributeInput{
			EntryID:     payload.EntryID,
			NewSellerID: payload.NewSellerID,
			Actor:       actorFromRequest(r),
			Reason:      payload.Reason,
			Confirm:     payload.Confirm,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

// AdminResyncPayout repairs ledger entries that drifted from their payable
// unit's status.
func AdminResyncPayout(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		var payload resyncRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.ResyncPayoutStatus(r.Context(), reconcile.ResyncInput{
			PayoutID: payload.PayoutID,
			Actor:    actorFromRequest(r),
			Reason:   payload.Reason,
			Confirm:  payload.Confirm,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

// AdminResolveDispatch settles a payout stuck in dispatching or retry by
// asking the rail what actually happened.
func AdminResolveDispatch(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		payoutID, err := parsePayoutID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload resolveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		plan, err := svc.ResolveDispatch(r.Context(), reconcile.ResolveInput{
			PayoutID: payoutID,
			Actor:    actorFromRequest(r),
			Reason:   payload.Reason,
			Confirm:  payload.Confirm,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, plan)
	}
}

// AdminCorrections pages through the correction audit trail.
func AdminCorrections(svc reconcileService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		targetID, err := validators.ParseQueryUUID(r, "target_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := reconcile.ListCorrectionsQuery{
			TargetID: targetID,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("operation")); raw != "" {
			operation, parseErr := enums.ParseCorrectionOperation(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid correction operation"))
				return
			}
			query.Operation = &operation
		}

		records, next, err := svc.ListCorrections(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := correctionList{Corrections: records}
		if next != nil {
			encoded := pagination.EncodeCursor(*next)
			out.NextCursor = &encoded
		}
		responses.WriteSuccess(w, out)
	}
}

// actorFromRequest resolves the audited actor identity from the auth
// context, falling back to a stable marker for unauthenticated callers.
func actorFromRequest(r *http.Request) string {
	if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
		return userID
	}
	return "unknown"
}
