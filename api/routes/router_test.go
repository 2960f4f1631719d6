package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/internal/reconcile"
	pkgauth "github.com/inkwellmarket/inkwell-backend/pkg/auth"
	"github.com/inkwellmarket/inkwell-backend/pkg/config"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubLedgerService struct{}

func (stubLedgerService) RecordSale(ctx context.Context, input ledger.RecordSaleInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{ID: uuid.New(), OrderID: input.OrderID}, nil
}

func (stubLedgerService) ListEntries(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubReconcile struct{}

func (stubReconcile) ReattributeSeller(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error) {
	return &reconcile.Plan{}, nil
}

func (stubReconcile) ResyncPayoutStatus(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error) {
	return &reconcile.Plan{}, nil
}

func (stubReconcile) ResolveDispatch(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error) {
	return &reconcile.Plan{}, nil
}

func (stubReconcile) ListCorrections(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error) {
	return nil, nil, nil
}

type stubPayouts struct{}

func (stubPayouts) ListPayouts(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (stubPayouts) FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error) {
	return nil, nil
}

func (stubPayouts) FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error) {
	return nil, nil
}

type stubEntries struct{}

func (stubEntries) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "inkwell-test", ExpirationMinutes: 60},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	return NewRouter(Deps{
		Config:       testConfig(),
		DBPinger:     stubPinger{},
		RedisPinger:  stubPinger{},
		Ledger:       stubLedgerService{},
		EntryFinder:  stubEntries{},
		PayoutReader: stubPayouts{},
		Reconcile:    stubReconcile{},
	})
}

func mintToken(t *testing.T, role enums.ActorRole) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testConfig().JWT, time.Now(), pkgauth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthEndpointsArePublic(t *testing.T) {
	router := newTestRouter(t)
	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsEndpointIsPublic(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestSalesRequiresJWT(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestSalesAcceptsServiceRole(t *testing.T) {
	router := newTestRouter(t)
	orderID := uuid.New()
	body := `{
		"order_id": "` + orderID.String() + `",
		"attribution": {"seller_id": "` + uuid.NewString() + `"},
		"buyer_id": "` + uuid.NewString() + `",
		"subtotal_cents": 1000,
		"shipping_cents": 0,
		"discount_cents": 0,
		"payment_method": "card",
		"currency": "GBP"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleService))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestAdminGroupRejectsServiceRole(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/ledger", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleService))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestAdminGroupAcceptsAdminRole(t *testing.T) {
	router := newTestRouter(t)
	paths := []string{
		"/api/admin/v1/ledger",
		"/api/admin/v1/payouts",
		"/api/admin/v1/corrections",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleAdmin))
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d: %s", path, resp.Code, resp.Body.String())
		}
	}
}

func TestReconcileRoutesRequireAdmin(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/reconcile/resync", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+mintToken(t, enums.ActorRoleService))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
