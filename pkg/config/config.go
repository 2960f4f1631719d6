package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "INKWELL"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv    = "INKWELL_APP_ENV"
	EnvPort      = "INKWELL_APP_PORT"
	EnvDBDSN     = "INKWELL_DB_DSN"
	EnvDBHost    = "INKWELL_DB_HOST"
	EnvDBUser    = "INKWELL_DB_USER"
	EnvDBName    = "INKWELL_DB_NAME"
	EnvRedisURL  = "INKWELL_REDIS_URL"
	EnvJWTSecret = "INKWELL_JWT_SECRET"
	EnvJWTIssuer = "INKWELL_JWT_ISSUER"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Fees         FeesConfig
	Payouts      PayoutsConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"INKWELL_APP_ENV" required:"true"`
	Port         string `envconfig:"INKWELL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"INKWELL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"INKWELL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"INKWELL_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"INKWELL_DB_DSN"`
	Driver string `envconfig:"INKWELL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"INKWELL_DB_HOST"`
	LegacyPort     int    `envconfig:"INKWELL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"INKWELL_DB_USER"`
	LegacyPassword string `envconfig:"INKWELL_DB_PASSWORD"`
	LegacyName     string `envconfig:"INKWELL_DB_NAME"`
	LegacySSLMode  string `envconfig:"INKWELL_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"INKWELL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"INKWELL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"INKWELL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"INKWELL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"INKWELL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"INKWELL_REDIS_ADDR"`
	Password     string        `envconfig:"INKWELL_REDIS_PASSWORD"`
	DB           int           `envconfig:"INKWELL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"INKWELL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"INKWELL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"INKWELL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"INKWELL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"INKWELL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"INKWELL_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"INKWELL_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"INKWELL_JWT_EXPIRATION_MINUTES" default:"60"`
}

// FeesConfig holds the platform's cut of each sale. Basis points so the
// value stays an integer in the environment.
type FeesConfig struct {
	PlatformFeeBPS int `envconfig:"INKWELL_FEES_PLATFORM_BPS" default:"100"`
}

type PayoutsConfig struct {
	MaxAttempts     int           `envconfig:"INKWELL_PAYOUTS_MAX_ATTEMPTS" default:"5"`
	BackoffBase     time.Duration `envconfig:"INKWELL_PAYOUTS_BACKOFF_BASE" default:"1m"`
	BackoffCap      time.Duration `envconfig:"INKWELL_PAYOUTS_BACKOFF_CAP" default:"6h"`
	DispatchTimeout time.Duration `envconfig:"INKWELL_PAYOUTS_DISPATCH_TIMEOUT" default:"30s"`
	RequeryAfter    time.Duration `envconfig:"INKWELL_PAYOUTS_REQUERY_AFTER" default:"10m"`
	BatchLimit      int           `envconfig:"INKWELL_PAYOUTS_BATCH_LIMIT" default:"100"`
	WorkerInterval  time.Duration `envconfig:"INKWELL_PAYOUTS_WORKER_INTERVAL" default:"15m"`
}

type StripeConfig struct {
	APIKey string `envconfig:"INKWELL_STRIPE_API_KEY"`
	Env    string `envconfig:"INKWELL_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID string `envconfig:"INKWELL_PAYPAL_CLIENT_ID"`
	Secret   string `envconfig:"INKWELL_PAYPAL_SECRET"`
	BaseURL  string `envconfig:"INKWELL_PAYPAL_BASE_URL" default:"https://api-m.sandbox.paypal.com"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"INKWELL_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"INKWELL_PUBSUB_LEDGER_TOPIC" default:"iw-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"INKWELL_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"INKWELL_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"INKWELL_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"INKWELL_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
