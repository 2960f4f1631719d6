package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/inkwellmarket/inkwell-backend/api/routes"
	"github.com/inkwellmarket/inkwell-backend/internal/fees"
	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	"github.com/inkwellmarket/inkwell-backend/internal/reconcile"
	"github.com/inkwellmarket/inkwell-backend/pkg/config"
	"github.com/inkwellmarket/inkwell-backend/pkg/db"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/migrate"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/redis"
	pkgstripe "github.com/inkwellmarket/inkwell-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		logg.Error(context.Background(), "failed to access sql db", err)
		os.Exit(1)
	}
	if err := migrate.MaybeRunDev(context.Background(), cfg, sqlDB, logg); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	ledgerRepo := ledger.NewRepository(dbClient.DB())
	payoutRepo := payouts.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	calculator, err := fees.NewCalculator(fees.CalculatorParams{
		PlatformFeeBPS: int64(cfg.Fees.PlatformFeeBPS),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create fee calculator", err)
		os.Exit(1)
	}

	aggregator, err := payouts.NewAggregator(payouts.AggregatorParams{
		Transactor: dbClient,
		Repo:       payoutRepo,
		LedgerRepo: ledgerRepo,
		Outbox:     outboxService,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout aggregator", err)
		os.Exit(1)
	}

	destinations, err := payouts.NewDestinationService(payoutRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create destination service", err)
		os.Exit(1)
	}

	ledgerService, err := ledger.NewService(ledger.ServiceParams{
		Transactor:   dbClient,
		Repo:         ledgerRepo,
		Calculator:   calculator,
		Destinations: destinations,
		Attacher:     aggregator,
		Outbox:       outboxService,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create ledger service", err)
		os.Exit(1)
	}

	railMap, err := buildRails(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment rails", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Transactor:  dbClient,
		Corrections: reconcile.NewRepository(dbClient.DB()),
		LedgerRepo:  ledgerRepo,
		PayoutRepo:  payoutRepo,
		Rails:       railMap,
		Outbox:      outboxService,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:       cfg,
			Logger:       logg,
			DBPinger:     dbClient,
			RedisPinger:  redisClient,
			Idempotency:  redisClient,
			Ledger:       ledgerService,
			EntryFinder:  ledgerRepo,
			PayoutReader: payoutRepo,
			Reconcile:    reconcileService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

// buildRails wires every rail with configured credentials. A rail with no
// credentials is left out of the map; dispatch against it fails loudly
// rather than silently no-oping.
func buildRails(cfg *config.Config, logg *logger.Logger) (map[enums.RailKind]rails.Rail, error) {
	out := make(map[enums.RailKind]rails.Rail)

	if cfg.Stripe.APIKey != "" {
		stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
		if err != nil {
			return nil, err
		}
		stripeRail, err := rails.NewStripeConnectRail(rails.NewStripeTransferClient(stripeClient))
		if err != nil {
			return nil, err
		}
		out[enums.RailKindStripeConnect] = stripeRail
	}

	if cfg.PayPal.ClientID != "" && cfg.PayPal.Secret != "" {
		paypalRail, err := rails.NewPayPalPayoutsRail(
			cfg.PayPal.ClientID,
			cfg.PayPal.Secret,
			rails.WithPayPalBaseURL(cfg.PayPal.BaseURL),
		)
		if err != nil {
			return nil, err
		}
		out[enums.RailKindPayPalPayouts] = paypalRail
	}

	return out, nil
}
