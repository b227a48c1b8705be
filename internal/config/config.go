// Package config loads the process configuration from the environment,
// with optional .env support for local development.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every recognized environment option.
type Config struct {
	Addr    string `env:"ADDR" envDefault:":8080"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Payment provider credentials.
	ProviderClientID        string `env:"PROVIDER_CLIENT_ID"`
	ProviderClientSecret    string `env:"PROVIDER_CLIENT_SECRET"`
	ProviderSubscriptionKey string `env:"PROVIDER_SUBSCRIPTION_KEY"`
	MerchantSerialNumber    string `env:"MERCHANT_SERIAL_NUMBER"`
	ProviderBaseURL         string `env:"PROVIDER_BASE_URL"`

	// WebhookSecret signs inbound notifications; empty skips verification
	// (insecure, development only).
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	// AdminSecret guards the capture retry and listing endpoints; empty
	// disables them.
	AdminSecret string `env:"ADMIN_SECRET"`

	// Record Store backend: "memory", "postgres" or "s3".
	StoreBackend string `env:"STORE_BACKEND" envDefault:"memory"`
	DatabaseURL  string `env:"DATABASE_URL"`
	S3Bucket     string `env:"S3_BUCKET"`
	S3Region     string `env:"S3_REGION"`

	// Protected artifact released to authorized downloads.
	AssetDir string `env:"ASSET_DIR" envDefault:"./assets"`
	AssetKey string `env:"ASSET_KEY" envDefault:"artifact.zip"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: STORE_BACKEND=s3 requires S3_BUCKET")
		}
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}
	return nil
}
