package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/api/responses"
	"github.com/inkwellmarket/inkwell-backend/api/validators"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type payoutReader interface {
	ListPayouts(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error)
	FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error)
	FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error)
}

type ledgerEntryFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error)
}

type payoutList struct {
	Payouts    []models.PendingPayout `json:"payouts"`
	NextCursor *string                `json:"next_cursor,omitempty"`
}

type payoutDetail struct {
	Payout       *models.PendingPayout    `json:"payout"`
	Confirmation *models.RailConfirmation `json:"confirmation,omitempty"`
	Entries      []models.LedgerEntry     `json:"entries"`
}

// AdminPayouts returns a filtered, cursor-paged list of payable units.
func AdminPayouts(repo payoutReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sellerID, err := validators.ParseQueryUUID(r, "seller_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := payouts.ListPayoutsQuery{
			SellerID: sellerID,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParsePendingPayoutStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid payout status"))
				return
			}
			query.Status = &status
		}

		list, next, err := repo.ListPayouts(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts"))
			return
		}

		out := payoutList{Payouts: list}
		if next != nil {
			encoded := pagination.EncodeCursor(*next)
			out.NextCursor = &encoded
		}
		responses.WriteSuccess(w, out)
	}
}

// AdminPayoutDetail returns one payable unit with its rail confirmation and
// source ledger entries.
func AdminPayoutDetail(repo payoutReader, entries ledgerEntryFinder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payouts repository unavailable"))
			return
		}

		payoutID, err := parsePayoutID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payout, err := repo.FindPayoutByID(r.Context(), payoutID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch payout"))
			return
		}
		if payout == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found"))
			return
		}

		detail := payoutDetail{Payout: payout, Entries: []models.LedgerEntry{}}

		confirmation, err := repo.FindConfirmationByPayout(r.Context(), payout.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch confirmation"))
			return
		}
		detail.Confirmation = confirmation

		if entries != nil && len(payout.SourceEntryIDs) > 0 {
			rows, listErr := entries.FindByIDs(r.Context(), payout.SourceEntryIDs)
			if listErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, listErr, "fetch source entries"))
				return
			}
			detail.Entries = rows
		}

		responses.WriteSuccess(w, detail)
	}
}

func parsePayoutID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "payoutId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payout id")
	}
	return id, nil
}
