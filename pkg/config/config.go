package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	EnvPrefix = "CRAFT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv               = "CRAFT_APP_ENV"
	EnvPort                 = "CRAFT_APP_PORT"
	EnvDBDSN                = "CRAFT_DB_DSN"
	EnvDBHost               = "CRAFT_DB_HOST"
	EnvDBUser               = "CRAFT_DB_USER"
	EnvDBName               = "CRAFT_DB_NAME"
	EnvRedisURL             = "CRAFT_REDIS_URL"
	EnvJWTSecret            = "CRAFT_JWT_SECRET"
	EnvJWTIssuer            = "CRAFT_JWT_ISSUER"
	EnvStripeAPIKey         = "CRAFT_STRIPE_API_KEY"
	EnvStripeWebhookSecret  = "CRAFT_STRIPE_WEBHOOK_SECRET"
	EnvStripeEnv            = "CRAFT_STRIPE_ENV"
	EnvStripeCurrency       = "CRAFT_STRIPE_CURRENCY"
	EnvCheckoutShippingCost = "CRAFT_CHECKOUT_SHIPPING_COST"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Webhooks WebhookConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every semantic problem at once rather than the first one.
func (c *Config) Validate() error {
	var err error
	if _, perr := c.Checkout.Shipping(); perr != nil {
		err = multierr.Append(err, perr)
	}
	if c.Redis.URL == "" && c.Redis.Address == "" {
		err = multierr.Append(err, fmt.Errorf("redis url or address is required"))
	}
	if env := c.Stripe.Environment(); env != "test" && env != "live" {
		err = multierr.Append(err, fmt.Errorf("%s must be test or live, got %q", EnvStripeEnv, c.Stripe.Env))
	}
	if c.App.IsProd() && c.Stripe.WebhookSecret == "" {
		err = multierr.Append(err, fmt.Errorf("%s is required in prod", EnvStripeWebhookSecret))
	}
	return err
}

type AppConfig struct {
	Env          string `envconfig:"CRAFT_APP_ENV" required:"true"`
	Port         string `envconfig:"CRAFT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CRAFT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CRAFT_LOG_WARN_STACK" default:"false"`
	CORSOrigins  string `envconfig:"CRAFT_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

type DBConfig struct {
	DSN    string `envconfig:"CRAFT_DB_DSN"`
	Driver string `envconfig:"CRAFT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CRAFT_DB_HOST"`
	LegacyPort     int    `envconfig:"CRAFT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CRAFT_DB_USER"`
	LegacyPassword string `envconfig:"CRAFT_DB_PASSWORD"`
	LegacyName     string `envconfig:"CRAFT_DB_NAME"`
	LegacySSLMode  string `envconfig:"CRAFT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CRAFT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CRAFT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CRAFT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CRAFT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"CRAFT_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CRAFT_REDIS_URL"`
	Address      string        `envconfig:"CRAFT_REDIS_ADDR"`
	Password     string        `envconfig:"CRAFT_REDIS_PASSWORD"`
	DB           int           `envconfig:"CRAFT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CRAFT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CRAFT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CRAFT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CRAFT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CRAFT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CRAFT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CRAFT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CRAFT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type StripeConfig struct {
	APIKey        string `envconfig:"CRAFT_STRIPE_API_KEY"`
	WebhookSecret string `envconfig:"CRAFT_STRIPE_WEBHOOK_SECRET"`
	Env           string `envconfig:"CRAFT_STRIPE_ENV" default:"test"`
	Currency      string `envconfig:"CRAFT_STRIPE_CURRENCY" default:"gbp"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// NormalizedCurrency lower-cases the ISO currency, defaulting to gbp.
func (s StripeConfig) NormalizedCurrency() string {
	cur := strings.TrimSpace(strings.ToLower(s.Currency))
	if cur == "" {
		return "gbp"
	}
	return cur
}

type CheckoutConfig struct {
	ShippingCost string        `envconfig:"CRAFT_CHECKOUT_SHIPPING_COST" default:"5.99"`
	RateLimit    int           `envconfig:"CRAFT_CHECKOUT_RATE_LIMIT" default:"20"`
	RateWindow   time.Duration `envconfig:"CRAFT_CHECKOUT_RATE_WINDOW" default:"1m"`
}

// Shipping parses the flat shipping fee in major units.
func (c CheckoutConfig) Shipping() (decimal.Decimal, error) {
	raw := strings.TrimSpace(c.ShippingCost)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", EnvCheckoutShippingCost, err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", EnvCheckoutShippingCost)
	}
	return value, nil
}

type WebhookConfig struct {
	EventTTL time.Duration `envconfig:"CRAFT_WEBHOOK_EVENT_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CRAFT_AUTO_MIGRATE" default:"false"`
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
