package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/souhailsouid/adele/internal/database"
)

// Config holds all application configuration
type Config struct {
	UnusualWhalesAPIKey  string
	UnusualWhalesBaseURL string
	FMPAPIKey            string
	FMPBaseURL           string

	Port           string
	LogLevel       string
	LogFormat      string // console, json
	RequestTimeout int    // seconds
	RequestsPerSec int
	AllowedOrigins []string

	Database  database.ConnectionParams
	CachePath string

	WeightsFile     string
	ScanSchedule    string
	ScanConcurrency int
	DefaultTickers  []string

	TelegramBotToken string
	TelegramChatID   int64
	AlertCooldown    time.Duration

	StripeAPIKey              string
	StripeSubscriptionPriceID string
	StripeWebhookSecret       string
	StripeSuccessURL          string
	StripeCancelURL           string
	RequireSubscription       bool
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config

	cfg.UnusualWhalesAPIKey = os.Getenv("UW_API_KEY")
	cfg.UnusualWhalesBaseURL = getEnvWithDefault("UW_BASE_URL", "https://api.unusualwhales.com")
	cfg.FMPAPIKey = os.Getenv("FMP_API_KEY")
	cfg.FMPBaseURL = getEnvWithDefault("FMP_BASE_URL", "https://financialmodelingprep.com")

	cfg.Port = getEnvWithDefault("PORT", "8080")
	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getEnvWithDefault("LOG_FORMAT", "console")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 30)
	cfg.RequestsPerSec = getEnvIntWithDefault("RPS", 5)
	cfg.AllowedOrigins = getEnvListWithDefault("ALLOWED_ORIGINS", []string{"*"})

	cfg.Database = database.ConnectionParams{
		Host:     getEnvWithDefault("DB_HOST", "localhost"),
		Port:     getEnvWithDefault("DB_PORT", "5432"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		DBName:   getEnvWithDefault("DB_NAME", "adele"),
		SSLMode:  getEnvWithDefault("DB_SSLMODE", "disable"),
	}
	cfg.CachePath = getEnvWithDefault("CACHE_PATH", "cache.db")

	cfg.WeightsFile = os.Getenv("WEIGHTS_FILE")
	cfg.ScanSchedule = getEnvWithDefault("SCAN_SCHEDULE", "*/15 * * * *")
	cfg.ScanConcurrency = getEnvIntWithDefault("SCAN_CONCURRENCY", 4)
	cfg.DefaultTickers = getEnvListWithDefault("DEFAULT_TICKERS", nil)

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TelegramChatID = int64(getEnvIntWithDefault("TELEGRAM_CHAT_ID", 0))
	cfg.AlertCooldown = time.Duration(getEnvFloatWithDefault("ALERT_COOLDOWN_HOURS", 4) * float64(time.Hour))

	cfg.StripeAPIKey = os.Getenv("STRIPE_API_KEY")
	cfg.StripeSubscriptionPriceID = os.Getenv("STRIPE_SUBSCRIPTION_PRICE_ID")
	cfg.StripeWebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.StripeSuccessURL = getEnvWithDefault("STRIPE_SUCCESS_URL", "http://localhost:3000/billing/success")
	cfg.StripeCancelURL = getEnvWithDefault("STRIPE_CANCEL_URL", "http://localhost:3000/billing/cancel")
	cfg.RequireSubscription = getEnvBoolWithDefault("REQUIRE_SUBSCRIPTION", false)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	if c.UnusualWhalesAPIKey == "" {
		return fmt.Errorf("UW_API_KEY is required")
	}
	if c.FMPAPIKey == "" {
		return fmt.Errorf("FMP_API_KEY is required")
	}
	if c.RequireSubscription && c.StripeAPIKey == "" {
		return fmt.Errorf("STRIPE_API_KEY is required when REQUIRE_SUBSCRIPTION is enabled")
	}
	return nil
}

// TelegramEnabled reports whether alerts can be pushed to Telegram
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// StripeEnabled reports whether billing endpoints can be served
func (c *Config) StripeEnabled() bool {
	return c.StripeAPIKey != ""
}

// DatabaseEnabled reports whether PostgreSQL persistence is configured
func (c *Config) DatabaseEnabled() bool {
	return c.Database.User != ""
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvListWithDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
