package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every variable read by Load.
	EnvPrefix = "POS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "POS_DB_DSN"
	EnvDBHost = "POS_DB_HOST"
	EnvDBUser = "POS_DB_USER"
	EnvDBName = "POS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Orders       OrdersConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Tracing      TracingConfig
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
	Env          string `envconfig:"POS_APP_ENV" required:"true"`
	Port         string `envconfig:"POS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`

	CORSOrigins     []string      `envconfig:"POS_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ShutdownTimeout time.Duration `envconfig:"POS_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"POS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"POS_DB_DSN"`

	LegacyHost     string `envconfig:"POS_DB_HOST"`
	LegacyPort     int    `envconfig:"POS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"POS_DB_USER"`
	LegacyPassword string `envconfig:"POS_DB_PASSWORD"`
	LegacyName     string `envconfig:"POS_DB_NAME"`
	LegacySSLMode  string `envconfig:"POS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	Tracing bool `envconfig:"POS_DB_TRACING" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"POS_REDIS_ADDR"`
	Password     string        `envconfig:"POS_REDIS_PASSWORD"`
	DB           int           `envconfig:"POS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"POS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`

	IdempotencyTTL time.Duration `envconfig:"POS_REDIS_IDEMPOTENCY_TTL" default:"24h"`
}

// JWTConfig holds the verification side of access tokens. Tokens are minted by
// the identity service.
type JWTConfig struct {
	Secret string `envconfig:"POS_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"POS_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"false"`
}

// OrdersConfig toggles the server-side checks applied to caller-computed order totals.
type OrdersConfig struct {
	EnforceTotals      bool `envconfig:"POS_ORDERS_ENFORCE_TOTALS" default:"true"`
	RequireFullPayment bool `envconfig:"POS_ORDERS_REQUIRE_FULL_PAYMENT" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"POS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic    string `envconfig:"POS_PUBSUB_ORDERS_TOPIC" default:"pos-order-events"`
	InventoryTopic string `envconfig:"POS_PUBSUB_INVENTORY_TOPIC" default:"pos-inventory-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"POS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"POS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"POS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"POS_OUTBOX_RETENTION_DAYS" default:"30"`
}

// TracingConfig drives the OTLP span exporter. When disabled spans stay on the
// no-op provider.
type TracingConfig struct {
	Enabled        bool    `envconfig:"POS_TRACING_ENABLED" default:"false"`
	OTLPEndpoint   string  `envconfig:"POS_TRACING_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRate     float64 `envconfig:"POS_TRACING_SAMPLE_RATE" default:"1"`
	ServiceVersion string  `envconfig:"POS_SERVICE_VERSION" default:"dev"`
}

type CronConfig struct {
	Interval           time.Duration `envconfig:"POS_CRON_INTERVAL" default:"1h"`
	ReconcileBatchSize int           `envconfig:"POS_CRON_RECONCILE_BATCH_SIZE" default:"500"`
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
