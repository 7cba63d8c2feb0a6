// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	MinDurationMinutes int64 `yaml:"min_duration_minutes"`
	MaxDurationMinutes int64 `yaml:"max_duration_minutes"`
}

type ExpiryConfig struct {
	Cron              string `yaml:"cron"`
	PendingTTLMinutes int64  `yaml:"pending_ttl_minutes"`
}

type StripeConfig struct {
	SecretKey            string `yaml:"-"` // Loaded from environment
	SubscriptionAmount   int64  `yaml:"subscription_amount"`
	SubscriptionCurrency string `yaml:"subscription_currency"`
}

type EmailConfig struct {
	Region          string `yaml:"region"`
	Sender          string `yaml:"sender"`
	AccessKeyID     string `yaml:"-"` // Loaded from environment
	SecretAccessKey string `yaml:"-"` // Loaded from environment
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
		SecretKey   string `yaml:"-"` // Loaded from environment
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
	Expiry   ExpiryConfig   `yaml:"expiry"`
	Stripe   StripeConfig   `yaml:"stripe"`
	Email    EmailConfig    `yaml:"email"`

	Features struct {
		EnableMetrics bool `yaml:"enable_metrics"`
		EnableDebug   bool `yaml:"enable_debug"`
	} `yaml:"features"`
}

// Load loads both .env and yaml configuration
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	// Read and parse YAML config
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Load sensitive values from environment
	cfg.App.SecretKey = os.Getenv("APP_SECRET_KEY")
	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Email.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	cfg.applyDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Booking.MinDurationMinutes == 0 {
		c.Booking.MinDurationMinutes = 30
	}
	if c.Booking.MaxDurationMinutes == 0 {
		c.Booking.MaxDurationMinutes = 8 * 60
	}
	if c.Expiry.Cron == "" {
		c.Expiry.Cron = "*/10 * * * *"
	}
	if c.Expiry.PendingTTLMinutes == 0 {
		c.Expiry.PendingTTLMinutes = 30
	}
	if c.Stripe.SubscriptionCurrency == "" {
		c.Stripe.SubscriptionCurrency = "usd"
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Filename == "" {
			return fmt.Errorf("database filename is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	if c.Booking.MinDurationMinutes <= 0 || c.Booking.MaxDurationMinutes < c.Booking.MinDurationMinutes {
		return fmt.Errorf("booking duration bounds are invalid")
	}

	if _, err := cron.ParseStandard(c.Expiry.Cron); err != nil {
		return fmt.Errorf("invalid expiry cron expression %q: %w", c.Expiry.Cron, err)
	}
	if c.Expiry.PendingTTLMinutes <= 0 {
		return fmt.Errorf("expiry pending TTL must be positive")
	}

	return nil
}
