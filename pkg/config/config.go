package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "PARLEY"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Stripe StripeConfig
	URLs   URLConfig
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
	Env          string `envconfig:"PARLEY_APP_ENV" required:"true"`
	Port         string `envconfig:"PARLEY_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PARLEY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PARLEY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PARLEY_DB_DSN"`
	Driver string `envconfig:"PARLEY_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"PARLEY_DB_HOST"`
	Port     int    `envconfig:"PARLEY_DB_PORT" default:"5432"`
	User     string `envconfig:"PARLEY_DB_USER"`
	Password string `envconfig:"PARLEY_DB_PASSWORD"`
	Name     string `envconfig:"PARLEY_DB_NAME"`
	SSLMode  string `envconfig:"PARLEY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARLEY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARLEY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARLEY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARLEY_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	AutoMigrate bool `envconfig:"PARLEY_DB_AUTO_MIGRATE" default:"false"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARLEY_REDIS_URL" required:"true"`
	Password     string        `envconfig:"PARLEY_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARLEY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARLEY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARLEY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARLEY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARLEY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARLEY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	// APIKey decides the billing mode: an sk_live/rk_live key selects live
	// price columns everywhere, anything else selects the test columns.
	APIKey                string        `envconfig:"PARLEY_STRIPE_API_KEY" required:"true"`
	WebhookSecret         string        `envconfig:"PARLEY_STRIPE_WEBHOOK_SECRET" required:"true"`
	WebhookIdempotencyTTL time.Duration `envconfig:"PARLEY_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type URLConfig struct {
	// WebAppBaseURL is where checkout success/cancel redirects land.
	WebAppBaseURL string `envconfig:"PARLEY_WEB_APP_BASE_URL" required:"true"`
	// APIBaseURL is the public base of this service, used for webhook
	// endpoint self-registration.
	APIBaseURL string `envconfig:"PARLEY_API_BASE_URL" required:"true"`
}

// CheckoutSuccessURL is the hosted-checkout return target.
func (u URLConfig) CheckoutSuccessURL() string {
	return strings.TrimRight(u.WebAppBaseURL, "/") + "/billing/success"
}

// CheckoutCancelURL is where abandoned checkouts land.
func (u URLConfig) CheckoutCancelURL() string {
	return strings.TrimRight(u.WebAppBaseURL, "/") + "/billing"
}

// WebhookURL is the publicly reachable Stripe webhook endpoint.
func (u URLConfig) WebhookURL() string {
	return strings.TrimRight(u.APIBaseURL, "/") + "/api/v1/webhooks/stripe"
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	var missing []string
	if db.Host == "" {
		missing = append(missing, "PARLEY_DB_HOST")
	}
	if db.User == "" {
		missing = append(missing, "PARLEY_DB_USER")
	}
	if db.Name == "" {
		missing = append(missing, "PARLEY_DB_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("either PARLEY_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
