package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/inkwellmarket/inkwell-backend/api/responses"
	"github.com/inkwellmarket/inkwell-backend/api/validators"
	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgerrors "github.com/inkwellmarket/inkwell-backend/pkg/errors"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type ledgerLister interface {
	ListEntries(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
}

type ledgerEntryList struct {
	Entries    []models.LedgerEntry `json:"entries"`
	NextCursor *string              `json:"next_cursor,omitempty"`
}

// AdminLedgerEntries returns a filtered, cursor-paged view of the ledger.
func AdminLedgerEntries(svc ledgerLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
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
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		query := ledger.ListEntriesQuery{
			SellerID: sellerID,
			From:     from,
			To:       to,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := enums.ParsePayoutStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid payout status"))
				return
			}
			query.PayoutStatus = &status
		}

		entries, next, err := svc.ListEntries(r.Context(), query)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list := ledgerEntryList{Entries: entries}
		if next != nil {
			encoded := pagination.EncodeCursor(*next)
			list.NextCursor = &encoded
		}
		responses.WriteSuccess(w, list)
	}
}
