package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type stubLedgerLister struct {
	listFn func(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
}

func (s stubLedgerLister) ListEntries(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil, nil
}

func TestAdminLedgerEntriesAppliesFilters(t *testing.T) {
	sellerID := uuid.New()
	entryID := uuid.New()

	svc := stubLedgerLister{
		listFn: func(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
			if query.SellerID == nil || *query.SellerID != sellerID {
				t.Fatalf("expected seller filter %s", sellerID)
			}
			if query.PayoutStatus == nil || *query.PayoutStatus != enums.PayoutStatusQueued {
				t.Fatal("expected queued status filter")
			}
			if query.Pagination.Limit != 10 {
				t.Fatalf("unexpected limit %d", query.Pagination.Limit)
			}
			return []models.LedgerEntry{{ID: entryID, SellerID: sellerID}}, nil, nil
		},
	}

	handler := AdminLedgerEntries(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/?seller_id="+sellerID.String()+"&status=queued&limit=10", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data ledgerEntryList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Entries) != 1 || envelope.Data.Entries[0].ID != entryID {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if envelope.Data.NextCursor != nil {
		t.Fatal("expected no next cursor")
	}
}

func TestAdminLedgerEntriesEncodesNextCursor(t *testing.T) {
	next := &pagination.Cursor{ID: uuid.New()}
	svc := stubLedgerLister{
		listFn: func(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
			return []models.LedgerEntry{{ID: uuid.New()}}, next, nil
		},
	}

	handler := AdminLedgerEntries(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var envelope struct {
		Data ledgerEntryList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.NextCursor == nil || *envelope.Data.NextCursor != pagination.EncodeCursor(*next) {
		t.Fatal("expected encoded next cursor")
	}
}

func TestAdminLedgerEntriesRejectsBadStatus(t *testing.T) {
	svc := stubLedgerLister{
		listFn: func(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
			t.Fatal("service should not be called")
			return nil, nil, nil
		},
	}

	handler := AdminLedgerEntries(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/?status=exploded", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
