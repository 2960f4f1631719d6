package migrate

import (
	"context"
	"database/sql"

	"github.com/inkwellmarket/inkwell-backend/pkg/config"
	"github.com/inkwellmarket/inkwell-backend/pkg/logger"
)

// MaybeRunDev applies pending migrations on startup when the auto-migrate
// flag is enabled. Only intended for development environments; production
// deploys run the migrate binary as a separate step.
func MaybeRunDev(ctx context.Context, cfg *config.Config, db *sql.DB, logg *logger.Logger) error {
	if !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if cfg.App.Env != config.AppEnvDev {
		logg.Warn(logg.WithField(ctx, "env", cfg.App.Env), "auto-migrate requested outside dev, skipping")
		return nil
	}

	logg.Info(ctx, "running pending migrations")
	return Run(ctx, db, DefaultDir, "up")
}
