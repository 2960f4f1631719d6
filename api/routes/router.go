package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwellmarket/inkwell-backend/api/controllers"
	"github.com/inkwellmarket/inkwell-backend/api/middleware"
	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/internal/reconcile"
	"github.com/inkwellmarket/inkwell-backend/pkg/config"
	"github.com/inkwellmarket/inkwell-backend/pkg/db/models"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/pagination"
	"github.com/inkwellmarket/inkwell-backend/pkg/redis"
)

// LedgerService is the slice of the ledger writer the HTTP surface uses.
type LedgerService interface {
	RecordSale(ctx context.Context, input ledger.RecordSaleInput) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, query ledger.ListEntriesQuery) ([]models.LedgerEntry, *pagination.Cursor, error)
}

// ReconcileService is the slice of the reconciliation service the HTTP
// surface uses.
type ReconcileService interface {
	ReattributeSeller(ctx context.Context, input reconcile.ReattributeInput) (*reconcile.Plan, error)
	ResyncPayoutStatus(ctx context.Context, input reconcile.ResyncInput) (*reconcile.Plan, error)
	ResolveDispatch(ctx context.Context, input reconcile.ResolveInput) (*reconcile.Plan, error)
	ListCorrections(ctx context.Context, query reconcile.ListCorrectionsQuery) ([]models.CorrectionRecord, *pagination.Cursor, error)
}

// PayoutReader is the read-only slice of the payouts repository the admin
// surface uses.
type PayoutReader interface {
	ListPayouts(ctx context.Context, query payouts.ListPayoutsQuery) ([]models.PendingPayout, *pagination.Cursor, error)
	FindPayoutByID(ctx context.Context, id uuid.UUID) (*models.PendingPayout, error)
	FindConfirmationByPayout(ctx context.Context, payoutID uuid.UUID) (*models.RailConfirmation, error)
}

// EntryFinder loads ledger entries by id for payout detail views.
type EntryFinder interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.LedgerEntry, error)
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DBPinger      controllers.Pinger
	RedisPinger   controllers.Pinger
	Idempotency   redis.IdempotencyStore
	Ledger        LedgerService
	EntryFinder   EntryFinder
	PayoutReader  PayoutReader
	Reconcile     ReconcileService
	MetricsGather prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DBPinger, deps.RedisPinger, logg))
	})

	gatherer := deps.MetricsGather
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAnyRole([]enums.ActorRole{enums.ActorRoleService, enums.ActorRoleAdmin}, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Post("/sales", controllers.RecordSale(deps.Ledger, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/ledger", controllers.AdminLedgerEntries(deps.Ledger, logg))
		r.Get("/payouts", controllers.AdminPayouts(deps.PayoutReader, logg))
		r.Get("/payouts/{payoutId}", controllers.AdminPayoutDetail(deps.PayoutReader, deps.EntryFinder, logg))

		r.Route("/reconcile", func(r chi.Router) {
			r.Post("/reattribute", controllers.AdminReattributeSeller(deps.Reconcile, logg))
			r.Post("/resync", controllers.AdminResyncPayout(deps.Reconcile, logg))
			r.Post("/payouts/{payoutId}/resolve", controllers.AdminResolveDispatch(deps.Reconcile, logg))
		})

		r.Get("/corrections", controllers.AdminCorrections(deps.Reconcile, logg))
	})

	return r
}
