package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkwellmarket/inkwell-backend/internal/cron"
	"github.com/inkwellmarket/inkwell-backend/internal/ledger"
	"github.com/inkwellmarket/inkwell-backend/internal/payouts"
	"github.com/inkwellmarket/inkwell-backend/internal/rails"
	"github.com/inkwellmarket/inkwell-backend/pkg/config"
	"github.com/inkwellmarket/inkwell-backend/pkg/db"
	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
	"github.com/inkwellmarket/inkwell-backend/pkg/metrics"
	"github.com/inkwellmarket/inkwell-backend/pkg/migrate"
	"github.com/inkwellmarket/inkwell-backend/pkg/outbox"
	"github.com/inkwellmarket/inkwell-backend/pkg/redis"
	pkgstripe "github.com/inkwellmarket/inkwell-backend/pkg/stripe"
)

const lockKeyFormat = "iw:payout-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "payout-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "payout-worker"

	logg = logger.New(logger.Options{
		ServiceName: "payout-worker",
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

	railMap, err := buildRails(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to build payment rails", err)
		os.Exit(1)
	}

	payoutMetrics := metrics.NewPayoutMetrics(prometheus.DefaultRegisterer)
	dispatcher, err := payouts.NewDispatcher(payouts.DispatcherParams{
		Transactor:      dbClient,
		Repo:            payoutRepo,
		LedgerRepo:      ledgerRepo,
		Rails:           railMap,
		Outbox:          outboxService,
		Metrics:         payoutMetrics,
		Logger:          logg,
		MaxAttempts:     cfg.Payouts.MaxAttempts,
		BackoffBase:     cfg.Payouts.BackoffBase,
		BackoffCap:      cfg.Payouts.BackoffCap,
		DispatchTimeout: cfg.Payouts.DispatchTimeout,
		RequeryAfter:    cfg.Payouts.RequeryAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payout dispatcher", err)
		os.Exit(1)
	}

	aggregateJob, err := cron.NewAggregateDispatchJob(aggregator, dispatcher, cfg.Payouts.BatchLimit)
	if err != nil {
		logg.Error(context.Background(), "failed to create aggregate job", err)
		os.Exit(1)
	}
	requeryJob, err := cron.NewRequeryJob(dispatcher, cfg.Payouts.BatchLimit)
	if err != nil {
		logg.Error(context.Background(), "failed to create requery job", err)
		os.Exit(1)
	}

	registry := cron.NewRegistry(aggregateJob, requeryJob)

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create worker lock", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Payouts.WorkerInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting payout worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "payout worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "payout worker shutting down gracefully")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

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
