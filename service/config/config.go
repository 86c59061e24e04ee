package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Up Bank configuration
	UpToken    string
	WebhookURL string

	// Firefly III configuration
	FireflyToken string
	FireflyURL   string

	// Ledger configuration
	CurrencyCode string

	// Reconciliation configuration
	QueueSize     int
	RemoteTimeout time.Duration

	// Optional integrations. Empty means disabled.
	DatabaseURL string
	NATSURL     string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Up Bank configuration
	cfg.UpToken = os.Getenv("UP_TOKEN")
	if cfg.UpToken == "" {
		errs = append(errs, fmt.Errorf("UP_TOKEN is required"))
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	if cfg.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("WEBHOOK_URL is required"))
	} else if _, err := url.ParseRequestURI(cfg.WebhookURL); err != nil {
		errs = append(errs, fmt.Errorf("WEBHOOK_URL: invalid URL %q: %w", cfg.WebhookURL, err))
	}

	// Firefly III configuration
	cfg.FireflyToken = os.Getenv("FIREFLY_TOKEN")
	if cfg.FireflyToken == "" {
		errs = append(errs, fmt.Errorf("FIREFLY_TOKEN is required"))
	}

	cfg.FireflyURL = os.Getenv("FIREFLY_URL")
	if cfg.FireflyURL == "" {
		errs = append(errs, fmt.Errorf("FIREFLY_URL is required"))
	} else if _, err := url.ParseRequestURI(cfg.FireflyURL); err != nil {
		errs = append(errs, fmt.Errorf("FIREFLY_URL: invalid URL %q: %w", cfg.FireflyURL, err))
	}

	// Ledger configuration
	cfg.CurrencyCode = getEnvOrDefault("CURRENCY_CODE", "AUD")

	// Reconciliation configuration
	queueSize, err := parseInt("QUEUE_SIZE", 256)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.QueueSize = queueSize
	}

	remoteTimeout, err := parseDuration("REMOTE_TIMEOUT", "15s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RemoteTimeout = remoteTimeout
	}

	// Optional integrations
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if cfg.QueueSize < 1 {
		return nil, fmt.Errorf("configuration validation failed: QUEUE_SIZE must be at least 1")
	}

	if cfg.RemoteTimeout < time.Second {
		return nil, fmt.Errorf("configuration validation failed: REMOTE_TIMEOUT must be at least 1 second")
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.UpToken == "" {
		errs = append(errs, fmt.Errorf("UpToken is required"))
	}

	if c.WebhookURL == "" {
		errs = append(errs, fmt.Errorf("WebhookURL is required"))
	}

	if c.FireflyToken == "" {
		errs = append(errs, fmt.Errorf("FireflyToken is required"))
	}

	if c.FireflyURL == "" {
		errs = append(errs, fmt.Errorf("FireflyURL is required"))
	}

	if c.CurrencyCode == "" {
		errs = append(errs, fmt.Errorf("CurrencyCode is required"))
	}

	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("QueueSize must be at least 1"))
	}

	if c.RemoteTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RemoteTimeout must be at least 1 second"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// JournalEnabled reports whether the optional pgx event journal is configured.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// CommitEventsEnabled reports whether the optional NATS commit-event stream is configured.
func (c *Config) CommitEventsEnabled() bool {
	return c.NATSURL != ""
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
