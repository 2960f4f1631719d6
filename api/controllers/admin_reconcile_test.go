package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/api/middleware"
	"github.com/inkwellmarket/inkwell-backend/internal/reconcile"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type stubReconcileService struct {
	reattributeFn func(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error)
	resyncFn      func(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error)
	resolveFn     func(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error)
	listFn        func(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error)
}

func (s stubReconcileService) ReattributeSeller(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error) {
	if s.reattributeFn != nil {
		return s.reattributeFn(ctx, input)
	}
	return &reconcile.Plan{}, nil
}

func (s stubReconcileService) ResyncPayoutStatus(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error) {
	if s.resyncFn != nil {
		return s.resyncFn(ctx, input)
	}
	return &reconcile.Plan{}, nil
}

func (s stubReconcileService) ResolveDispatch(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error) {
	if s.resolveFn != nil {
		return s.resolveFn(ctx, input)
	}
	return &reconcile.Plan{}, nil
}

func (s stubReconcileService) ListCorrections(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return nil, nil, nil
}

func TestAdminReattributeSellerPassesActorFromContext(t *testing.T) {
	entryID := uuid.New()
	newSellerID := uuid.New()
	adminID := uuid.NewString()

	svc := stubReconcileService{
		reattributeFn: func(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error) {
			if input.EntryID != entryID || input.NewSellerID != newSellerID {
				t.Fatalf("unexpected input %+v", input)
			}
			if input.Actor != adminID {
				t.Fatalf("expected actor %s got %s", adminID, input.Actor)
			}
			if input.Confirm {
				t.Fatal("expected dry run")
			}
			return &reconcile.Plan{
				Operation: enums.CorrectionReattributeSeller,
				TargetID:  entryID,
				Applied:   false,
				Summary:   "would reattribute",
			}, nil
		},
	}

	body := `{"entry_id": "` + entryID.String() + `", "new_seller_id": "` + newSellerID.String() + `", "reason": "mis-keyed artist"}`
	handler := AdminReattributeSeller(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req = req.WithContext(middleware.WithUserID(req.Context(), adminID))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data reconcile.Plan `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.Applied {
		t.Fatal("expected dry-run plan")
	}
}

func TestAdminReattributeSellerRequiresReason(t *testing.T) {
	svc := stubReconcileService{
		reattributeFn: func(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}

	body := `{"entry_id": "` + uuid.NewString() + `", "new_seller_id": "` + uuid.NewString() + `"}`
	handler := AdminReattributeSeller(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminResyncPayoutConfirms(t *testing.T) {
	payoutID := uuid.New()
	svc := stubReconcileService{
		resyncFn: func(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error) {
			if input.PayoutID != payoutID || !input.Confirm {
				t.Fatalf("unexpected input %+v", input)
			}
			return &reconcile.Plan{Operation: enums.CorrectionResyncPayout, Applied: true}, nil
		},
	}

	body := `{"payout_id": "` + payoutID.String() + `", "reason": "entries drifted", "confirm": true}`
	handler := AdminResyncPayout(svc, nil)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminResolveDispatchUsesURLParam(t *testing.T) {
	payoutID := uuid.New()
	svc := stubReconcileService{
		resolveFn: func(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error) {
			if input.PayoutID != payoutID {
				t.Fatalf("unexpected payout id %s", input.PayoutID)
			}
			return &reconcile.Plan{Operation: enums.CorrectionResolveDispatch}, nil
		},
	}

	body := `{"reason": "stuck after deploy"}`
	handler := AdminResolveDispatch(svc, nil)
	req := withPayoutID(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), payoutID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminCorrectionsFiltersOperation(t *testing.T) {
	recordID := uuid.New()
	svc := stubReconcileService{
		listFn: func(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error) {
			if query.Operation == nil || *query.Operation != enums.CorrectionReattributeSeller {
				t.Fatal("expected reattribute_seller filter")
			}
			return []models.CorrectionRecord{{ID: recordID, Operation: enums.CorrectionReattributeSeller}}, nil, nil
		},
	}

	handler := AdminCorrections(svc, nil)
	req := httptest.NewRequest(http.MethodGet, "/?operation=reattribute_seller", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data correctionList `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Corrections) != 1 || envelope.Data.Corrections[0].ID != recordID {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
}

func TestAdminCorrectionsRejectsBadOperation(t *testing.T) {
	handler := AdminCorrections(stubReconcileService{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/?operation=rewrite_history", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
