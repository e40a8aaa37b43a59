package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	// BackendMemory keeps client state in process memory; lost on restart.
	BackendMemory = "memory"
	// BackendRedis keeps client state in Redis.
	BackendRedis = "redis"
	// BackendPostgres keeps client state in a PostgreSQL table.
	BackendPostgres = "postgres"

	devSessionSecret = "dev-only-session-secret"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" envDefault:"Storefront"`
	Env            string        `env:"APP_ENV" envDefault:"development"`
	Port           string        `env:"PORT" envDefault:"8080"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	PublicURL      string        `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	ShutdownPeriod time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`

	StateBackend string        `env:"STATE_BACKEND" envDefault:"memory"`
	StateTTL     time.Duration `env:"STATE_TTL" envDefault:"720h"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	RedisURL     string        `env:"REDIS_URL"`

	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	API      API      `envPrefix:"API_"`
	Razorpay Razorpay `envPrefix:"RAZORPAY_"`
	PayU     PayU     `envPrefix:"PAYU_"`
	OTP      OTP      `envPrefix:"OTP_"`
}

// API describes the upstream REST backend.
type API struct {
	BaseURL string        `env:"BASE_URL" envDefault:"https://api.civilservicescompass.com/api"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// Razorpay configures the popup payment provider.
type Razorpay struct {
	KeyID           string        `env:"KEY_ID"`
	ScriptURL       string        `env:"SCRIPT_URL" envDefault:"https://checkout.razorpay.com/v1/checkout.js"`
	MerchantName    string        `env:"MERCHANT_NAME" envDefault:"Course PDF App"`
	ThemeColor      string        `env:"THEME_COLOR" envDefault:"#1976d2"`
	CheckoutTimeout time.Duration `env:"CHECKOUT_TIMEOUT" envDefault:"15m"`
}

// Enabled reports whether a public key was provided.
func (r Razorpay) Enabled() bool { return r.KeyID != "" }

// PayU configures the redirect payment provider.
type PayU struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
}

// OTP configures the mobile login dialog.
type OTP struct {
	CountryCode        string        `env:"COUNTRY_CODE" envDefault:"91"`
	ResendCooldown     time.Duration `env:"RESEND_COOLDOWN" envDefault:"60s"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"5"`
}

// Load reads a local .env file when present, then parses the environment.
func Load() (Config, error) {
	// a missing .env is expected outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.StateBackend = strings.ToLower(cfg.StateBackend)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StateBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when STATE_BACKEND=redis")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set when STATE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.StateBackend)
	}

	if c.SessionSecret == "" {
		if !c.IsDev() {
			return fmt.Errorf("SESSION_SECRET must be set when APP_ENV=%s", c.Env)
		}
		c.SessionSecret = devSessionSecret
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL must be set")
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	c.PublicURL = strings.TrimRight(c.PublicURL, "/")

	if len(c.OTP.CountryCode) == 0 || strings.Trim(c.OTP.CountryCode, "0123456789") != "" {
		return fmt.Errorf("OTP_COUNTRY_CODE must be digits, got %q", c.OTP.CountryCode)
	}
	return nil
}

// IsDev reports whether the app runs in a local development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}
