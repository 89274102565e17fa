package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv        = "STOREFRONT_APP_ENV"
	EnvPort          = "STOREFRONT_APP_PORT"
	EnvStoreBackend  = "STOREFRONT_STORE_BACKEND"
	EnvDBDSN         = "STOREFRONT_DB_DSN"
	EnvRedisURL      = "STOREFRONT_REDIS_URL"
	EnvGCPProjectID  = "STOREFRONT_GCP_PROJECT_ID"
	EnvAuthProvider  = "STOREFRONT_AUTH_PROVIDER"
	EnvJWTSecret     = "STOREFRONT_JWT_SECRET"
	EnvJWTIssuer     = "STOREFRONT_JWT_ISSUER"
	EnvPaymentURL    = "STOREFRONT_PAYMENT_CREATE_URL"
	EnvCashFee       = "STOREFRONT_PAYMENT_CASH_SHIPPING_FEE"
	EnvOrdersTopic   = "STOREFRONT_PUBSUB_ORDERS_TOPIC"
	EnvSubscribePoll = "STOREFRONT_STORE_SUBSCRIBE_POLL"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendSQLite    = "sqlite"
	BackendMemory    = "memory"

	AuthProviderJWT      = "jwt"
	AuthProviderFirebase = "firebase"
)

type Config struct {
	App          AppConfig
	Store        StoreConfig
	DB           DBConfig
	Redis        RedisConfig
	GCP          GCPConfig
	Auth         AuthConfig
	JWT          JWTConfig
	Payment      PaymentConfig
	Sync         SyncConfig
	PubSub       PubSubConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type StoreConfig struct {
	Backend string `envconfig:"STOREFRONT_STORE_BACKEND" default:"firestore"`
	// SubscribePoll is the change-detection interval of the SQL-backed document store.
	SubscribePoll time.Duration `envconfig:"STOREFRONT_STORE_SUBSCRIBE_POLL" default:"1s"`
	TxMaxAttempts int           `envconfig:"STOREFRONT_STORE_TX_MAX_ATTEMPTS" default:"5"`
}

// NormalizedBackend lowercases and trims the configured backend.
func (s StoreConfig) NormalizedBackend() string {
	return strings.ToLower(strings.TrimSpace(s.Backend))
}

type DBConfig struct {
	DSN             string        `envconfig:"STOREFRONT_DB_DSN"`
	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	// IdempotencyTTL bounds how long a checkout Idempotency-Key is remembered.
	IdempotencyTTL time.Duration `envconfig:"STOREFRONT_IDEMPOTENCY_TTL" default:"24h"`
}

// Enabled reports whether any redis endpoint was configured.
func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

type GCPConfig struct {
	ProjectID       string `envconfig:"STOREFRONT_GCP_PROJECT_ID"`
	CredentialsFile string `envconfig:"STOREFRONT_GOOGLE_APPLICATION_CREDENTIALS"`
	FirestoreDB     string `envconfig:"STOREFRONT_FIRESTORE_DATABASE" default:"(default)"`
}

type AuthConfig struct {
	Provider string `envconfig:"STOREFRONT_AUTH_PROVIDER" default:"jwt"`
}

type JWTConfig struct {
	Secret            string `envconfig:"STOREFRONT_JWT_SECRET"`
	Issuer            string `envconfig:"STOREFRONT_JWT_ISSUER" default:"storefront"`
	ExpirationMinutes int    `envconfig:"STOREFRONT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PaymentConfig struct {
	CreateURL       string        `envconfig:"STOREFRONT_PAYMENT_CREATE_URL" required:"true"`
	Timeout         time.Duration `envconfig:"STOREFRONT_PAYMENT_TIMEOUT" default:"15s"`
	CashShippingFee int64         `envconfig:"STOREFRONT_PAYMENT_CASH_SHIPPING_FEE" default:"10000"`
}

type SyncConfig struct {
	WriteTimeout time.Duration `envconfig:"STOREFRONT_SYNC_WRITE_TIMEOUT" default:"10s"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"STOREFRONT_PUBSUB_ORDERS_TOPIC"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (c *Config) validate() error {
	switch c.Store.NormalizedBackend() {
	case BackendFirestore:
		if c.GCP.ProjectID == "" {
			return fmt.Errorf("%s is required for the %s backend", EnvGCPProjectID, BackendFirestore)
		}
	case BackendPostgres, BackendSQLite:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the %s backend", EnvDBDSN, c.Store.NormalizedBackend())
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%s must be one of firestore, postgres, sqlite, memory (got %q)", EnvStoreBackend, c.Store.Backend)
	}

	switch strings.ToLower(strings.TrimSpace(c.Auth.Provider)) {
	case AuthProviderJWT:
		if c.JWT.Secret == "" {
			return fmt.Errorf("%s is required for the %s auth provider", EnvJWTSecret, AuthProviderJWT)
		}
	case AuthProviderFirebase:
		if c.GCP.ProjectID == "" {
			return fmt.Errorf("%s is required for the %s auth provider", EnvGCPProjectID, AuthProviderFirebase)
		}
	default:
		return fmt.Errorf("%s must be jwt or firebase (got %q)", EnvAuthProvider, c.Auth.Provider)
	}

	if c.Payment.CashShippingFee < 0 {
		return fmt.Errorf("%s must not be negative", EnvCashFee)
	}
	return nil
}
