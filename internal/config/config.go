package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration, read from the environment
// (optionally seeded from a .env file).
type Config struct {
	Env  string `envconfig:"APP_ENV" default:"development"`
	Port int    `envconfig:"PORT" default:"3000"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	Auth      AuthConfig
	Stripe    StripeConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Log       LogConfig
	Numbering NumberingConfig
}

type AuthConfig struct {
	JWTSecret string        `envconfig:"JWT_SECRET"`
	TokenTTL  time.Duration `envconfig:"JWT_TTL" default:"168h"`
}

type StripeConfig struct {
	SecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	WebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// StorageConfig selects the object store: "supabase" or "s3".
type StorageConfig struct {
	Provider       string        `envconfig:"STORAGE_PROVIDER" default:"supabase"`
	SignedURLTTL   time.Duration `envconfig:"SIGNED_URL_TTL" default:"60s"`
	SupabaseURL    string        `envconfig:"SUPABASE_URL"`
	SupabaseKey    string        `envconfig:"SUPABASE_SERVICE_KEY"`
	SupabaseBucket string        `envconfig:"SUPABASE_BUCKET" default:"case-documents"`
	S3Bucket       string        `envconfig:"S3_BUCKET"`
}

type RedisConfig struct {
	Addr     string        `envconfig:"REDIS_ADDR"`
	Password string        `envconfig:"REDIS_PASSWORD"`
	DB       int           `envconfig:"REDIS_DB" default:"0"`
	StatsTTL time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// NumberingConfig drives the human-readable case number.
type NumberingConfig struct {
	CasePrefix string `envconfig:"CASE_NUMBER_PREFIX" default:"DMK"`
	Timezone   string `envconfig:"CASE_NUMBER_TZ" default:"Africa/Accra"`
}

// Location resolves the numbering timezone, falling back to UTC.
func (n NumberingConfig) Location() *time.Location {
	if n.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(n.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := new(Config)
	if err := envconfig.Process("", c); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	if c.Numbering.CasePrefix == "" {
		c.Numbering.CasePrefix = "DMK"
	}
	return c, nil
}

// Validate checks what `serve` cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("set DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("set JWT_SECRET")
	}
	switch c.Storage.Provider {
	case "supabase", "s3", "none":
	default:
		return fmt.Errorf("unknown STORAGE_PROVIDER %q", c.Storage.Provider)
	}
	return nil
}

func (c *Config) IsDev() bool { return c.Env == "development" || c.Env == "dev" }
