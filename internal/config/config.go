// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/nvellore/fraudwatch/internal/rules"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Prediction services
	RelayURL       string // CORS relay prefix, prepended to each service URL
	TransactionURL string
	InvoiceURL     string
	SpamURL        string
	PredictTimeout time.Duration

	// Classification
	SpamRule rules.SpamStrategy

	// Dashboard
	SummaryInterval time.Duration

	// Security
	RateLimitRPS int

	// Observability
	OTLPEndpoint string
}

// Defaults
const (
	DefaultPort            = "8080"
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultRelayURL        = "https://thingproxy.freeboard.io/fetch/"
	DefaultTransactionURL  = "https://money-laundering.onrender.com/predict"
	DefaultInvoiceURL      = "https://fraud-receipt-detector.onrender.com/upload"
	DefaultSpamURL         = "https://spam-mail-detector-swr3.onrender.com/predict"
	DefaultPredictTimeout  = 30 * time.Second
	DefaultSummaryInterval = 5 * time.Second
	DefaultRateLimit       = 100
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		Env:             getEnv("ENV", DefaultEnv),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:     os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RelayURL:        getEnv("PREDICT_RELAY_URL", DefaultRelayURL),
		TransactionURL:  getEnv("PREDICT_TRANSACTION_URL", DefaultTransactionURL),
		InvoiceURL:      getEnv("PREDICT_INVOICE_URL", DefaultInvoiceURL),
		SpamURL:         getEnv("PREDICT_SPAM_URL", DefaultSpamURL),
		PredictTimeout:  getEnvDuration("PREDICT_TIMEOUT", DefaultPredictTimeout),
		SummaryInterval: getEnvDuration("SUMMARY_INTERVAL", DefaultSummaryInterval),
		RateLimitRPS:    int(getEnvInt64("RATE_LIMIT_RPS", int64(DefaultRateLimit))),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	spamRule, err := rules.ParseSpamStrategy(getEnv("SPAM_RULE", string(rules.SpamTrustRemote)))
	if err != nil {
		return nil, fmt.Errorf("SPAM_RULE: %w", err)
	}
	cfg.SpamRule = spamRule

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.TransactionURL == "" {
		return fmt.Errorf("PREDICT_TRANSACTION_URL is required")
	}
	if c.InvoiceURL == "" {
		return fmt.Errorf("PREDICT_INVOICE_URL is required")
	}
	if c.SpamURL == "" {
		return fmt.Errorf("PREDICT_SPAM_URL is required")
	}
	if c.SummaryInterval <= 0 {
		return fmt.Errorf("SUMMARY_INTERVAL must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
