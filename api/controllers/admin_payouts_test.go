package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/types"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type stubPayoutReader struct {
	listFn         func(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error)
	findFn         func(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error)
	confirmationFn func(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error)
}

func (s stubPayoutReader) ListPayouts(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil, nil
}

func (s stubPayoutReader) FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, nil
}

func (s stubPayoutReader) FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error) {
	if s.confirmationFn != nil {
		return s.confirmationFn(ctx, payoutID)
	}
	return nil, nil
}

type stubEntryFinder struct {
	findFn func(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error)
}

func (s stubEntryFinder) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
	if s.findFn != nil {
		return s.findFn(ctx, ids)
	}
	return nil, nil
}

func withPayoutID(req *http.Request, id uuid.UUID) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("payoutId", id.String())
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestAdminPayoutsAppliesStatusFilter(t *testing.T) {
	payoutID := uuid.New()
	repo := stubPayoutReader{
		listFn: func(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error) {
			if query.Status == nil || *query.Status != enums.PendingPayoutStatusManualReview {
				t.Fatal("expected manual_review filter")
			}
			return []models.PendingPayout{{ID: payoutID, Status: enums.PendingPayoutStatusManualReview}}, nil, nil
		},
	}

	handler := AdminPayouts(repo, nil)
	req := httptest.NewRequest(http.MethodGet, "/?status=manual_review", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data payoutList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Payouts) != 1 || envelope.Data.Payouts[0].ID != payoutID {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestAdminPayoutDetailIncludesEntriesAndConfirmation(t *testing.T) {
	payoutID := uuid.New()
	entryID := uuid.New()
	payout := &models.PendingPayout{
		ID:             payoutID,
		Status:         enums.PendingPayoutStatusCompleted,
		SourceEntryIDs: dbtypes.UUIDArray{entryID},
	}
	confirmation := &models.RailConfirmation{ID: uuid.New(), PendingPayoutID: payoutID, BatchID: "BATCH-7"}

	repo := stubPayoutReader{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error) {
			if id != payoutID {
				t.Fatalf("unexpected id %s", id)
			}
			return payout, nil
		},
		confirmationFn: func(ctx context.Context, id uuid.UUID) (*models.RailConfirmation, error) {
			return confirmation, nil
		},
	}
	entries := stubEntryFinder{
		findFn: func(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
			if len(ids) != 1 || ids[0] != entryID {
				t.Fatalf("unexpected entry ids %v", ids)
			}
			return []models.LedgerEntry{{ID: entryID}}, nil
		},
	}

	handler := AdminPayoutDetail(repo, entries, nil)
	req := withPayoutID(httptest.NewRequest(http.MethodGet, "/", nil), payoutID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data payoutDetail `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Payout == nil || envelope.Data.Payout.ID != payoutID {
		t.Fatal("expected payout in detail")
	}
	if envelope.Data.Confirmation == nil || envelope.Data.Confirmation.BatchID != "BATCH-7" {
		t.Fatal("expected confirmation in detail")
	}
	if len(envelope.Data.Entries) != 1 || envelope.Data.Entries[0].ID != entryID {
		t.Fatal("expected source entries in detail")
	}
}

func TestAdminPayoutDetailNotFound(t *testing.T) {
	repo := stubPayoutReader{}
	handler := AdminPayoutDetail(repo, stubEntryFinder{}, nil)
	req := withPayoutID(httptest.NewRequest(http.MethodGet, "/", nil), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestAdminPayoutDetailRejectsBadID(t *testing.T) {
	handler := AdminPayoutDetail(stubPayoutReader{}, stubEntryFinder{}, nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("payoutId", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
