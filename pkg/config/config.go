package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the envconfig namespace for every variable below.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Paygate      PaygateConfig
	Courier      CourierConfig
	Returns      ReturnsConfig
	Pricing      PricingConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Tracking     TrackingConfig
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
	Env          string `envconfig:"THREADKART_APP_ENV" required:"true"`
	Port         string `envconfig:"THREADKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"THREADKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"THREADKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"THREADKART_DB_DSN"`
	Driver string `envconfig:"THREADKART_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"THREADKART_DB_HOST"`
	Port     int    `envconfig:"THREADKART_DB_PORT" default:"5432"`
	User     string `envconfig:"THREADKART_DB_USER"`
	Password string `envconfig:"THREADKART_DB_PASSWORD"`
	Name     string `envconfig:"THREADKART_DB_NAME"`
	SSLMode  string `envconfig:"THREADKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"THREADKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"THREADKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"THREADKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"THREADKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db config: either THREADKART_DB_DSN or host/user/name must be set")
	}
	d.DSN = fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, url.QueryEscape(d.Password), d.Name, d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"THREADKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"THREADKART_REDIS_ADDR"`
	Password     string        `envconfig:"THREADKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"THREADKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"THREADKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"THREADKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"THREADKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"THREADKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"THREADKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"THREADKART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"THREADKART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"THREADKART_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"THREADKART_FEATURE_AUTO_MIGRATE" default:"false"`
}

// PaygateConfig holds payment gateway credentials. The payout keys are
// optional; withdrawals fall back to manual processing when absent.
type PaygateConfig struct {
	BaseURL       string        `envconfig:"THREADKART_PAYGATE_BASE_URL"`
	KeyID         string        `envconfig:"THREADKART_PAYGATE_KEY_ID"`
	KeySecret     string        `envconfig:"THREADKART_PAYGATE_KEY_SECRET"`
	PayoutKeyID   string        `envconfig:"THREADKART_PAYGATE_PAYOUT_KEY_ID"`
	PayoutSecret  string        `envconfig:"THREADKART_PAYGATE_PAYOUT_SECRET"`
	PayoutAccount string        `envconfig:"THREADKART_PAYGATE_PAYOUT_ACCOUNT"`
	Timeout       time.Duration `envconfig:"THREADKART_PAYGATE_TIMEOUT" default:"15s"`
}

// Configured reports whether the core payment credentials are present.
func (p PaygateConfig) Configured() bool {
	return strings.TrimSpace(p.KeyID) != "" && strings.TrimSpace(p.KeySecret) != ""
}

// PayoutsConfigured reports whether the payout API can be used.
func (p PaygateConfig) PayoutsConfigured() bool {
	return strings.TrimSpace(p.PayoutKeyID) != "" && strings.TrimSpace(p.PayoutSecret) != ""
}

// CourierConfig holds shipping carrier API credentials.
type CourierConfig struct {
	BaseURL     string        `envconfig:"THREADKART_COURIER_BASE_URL"`
	Email       string        `envconfig:"THREADKART_COURIER_EMAIL"`
	Password    string        `envconfig:"THREADKART_COURIER_PASSWORD"`
	PickupName  string        `envconfig:"THREADKART_COURIER_PICKUP_NAME" default:"Primary"`
	ChannelID   string        `envconfig:"THREADKART_COURIER_CHANNEL_ID"`
	Timeout     time.Duration `envconfig:"THREADKART_COURIER_TIMEOUT" default:"20s"`
	TokenTTL    time.Duration `envconfig:"THREADKART_COURIER_TOKEN_TTL" default:"216h"`
}

// Configured reports whether carrier credentials are present.
func (c CourierConfig) Configured() bool {
	return strings.TrimSpace(c.BaseURL) != "" && strings.TrimSpace(c.Email) != ""
}

type ReturnsConfig struct {
	WindowDays int `envconfig:"THREADKART_RETURNS_WINDOW_DAYS" default:"10"`
}

// Window returns the return-eligibility window after delivery.
func (r ReturnsConfig) Window() time.Duration {
	days := r.WindowDays
	if days <= 0 {
		days = 10
	}
	return time.Duration(days) * 24 * time.Hour
}

type PricingConfig struct {
	CommissionRateBPS int `envconfig:"THREADKART_COMMISSION_RATE_BPS" default:"700"`
}

type PubSubConfig struct {
	ProjectID string `envconfig:"THREADKART_PUBSUB_PROJECT_ID"`
	TopicID   string `envconfig:"THREADKART_PUBSUB_TOPIC_ID" default:"marketplace-events"`
}

type OutboxConfig struct {
	BatchSize    int           `envconfig:"THREADKART_OUTBOX_BATCH_SIZE" default:"100"`
	PollInterval time.Duration `envconfig:"THREADKART_OUTBOX_POLL_INTERVAL" default:"2s"`
}

type TrackingConfig struct {
	PollInterval time.Duration `envconfig:"THREADKART_TRACKING_POLL_INTERVAL" default:"15m"`
	BatchSize    int           `envconfig:"THREADKART_TRACKING_BATCH_SIZE" default:"50"`
	MetricsPort  string        `envconfig:"THREADKART_TRACKING_METRICS_PORT" default:"9102"`
}
