// Package config handles loading and validating configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultExcludedKeywords mark short-duration and derivative-style markets
// (crypto up/down, hourly, over/under) that are noise for insider detection.
var DefaultExcludedKeywords = []string{
	"up or down",
	"up/down",
	"updown",
	"15m",
	"15 min",
	"30m",
	"30 min",
	"hourly",
	"1 hour",
	"bitcoin up",
	"bitcoin down",
	"eth up",
	"eth down",
	"btc up",
	"btc down",
	"price above",
	"price below",
	"over/under",
	"o/u",
}

// Config holds all configuration values for the tracker.
type Config struct {
	// Polymarket Data API
	DataAPIURL      string
	TradeFetchLimit int
	PollInterval    time.Duration
	HTTPTimeout     time.Duration

	// Insider filters
	MinTradeSizeUSD   float64
	MaxUniqueMarkets  int
	MaxPriceThreshold float64
	ExcludedKeywords  []string

	// Cluster detection
	ClusterWindow      time.Duration
	ClusterMinWallets  int
	ClusterMinTradeUSD float64

	// Volume spikes
	VolumeSpikeMultiplier float64

	// Alerting
	DiscordWebhookURL string
	TelegramBotToken  string
	TelegramChatID    string
	RedisAddr         string
	RedisPassword     string
	RedisChannel      string
	AlertHubAddr      string

	// Alert archive
	DBPath string

	// Metrics
	PrometheusPort int

	// UI
	EnableTUI     bool
	UIRefreshRate time.Duration

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables with fallback to .env file.
// Priority order: Environment variables > .env file > hardcoded defaults
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DataAPIURL:      getEnv("DATA_API_URL", "https://data-api.polymarket.com"),
		TradeFetchLimit: getEnvInt("TRADE_FETCH_LIMIT", 100),
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_MS", 2000)) * time.Millisecond,
		HTTPTimeout:     time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 10)) * time.Second,

		MinTradeSizeUSD:   getEnvFloat("MIN_TRADE_SIZE_USD", 5000),
		MaxUniqueMarkets:  getEnvInt("MAX_UNIQUE_MARKETS", 2),
		MaxPriceThreshold: getEnvFloat("MAX_PRICE_THRESHOLD", 0.35),
		ExcludedKeywords:  getEnvList("EXCLUDED_KEYWORDS", DefaultExcludedKeywords),

		ClusterWindow:      time.Duration(getEnvInt("CLUSTER_WINDOW_SECONDS", 3600)) * time.Second,
		ClusterMinWallets:  getEnvInt("CLUSTER_MIN_WALLETS", 3),
		ClusterMinTradeUSD: getEnvFloat("CLUSTER_MIN_TRADE_USD", 1000),

		VolumeSpikeMultiplier: getEnvFloat("VOLUME_SPIKE_MULTIPLIER", 3.0),

		DiscordWebhookURL: getEnv("DISCORD_WEBHOOK_URL", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisChannel:      getEnv("REDIS_CHANNEL", "polyinsider:alerts"),
		AlertHubAddr:      getEnv("ALERT_HUB_ADDR", ""),

		DBPath: getEnv("DB_PATH", ""),

		PrometheusPort: getEnvInt("PROMETHEUS_PORT", 9090),

		EnableTUI:     getEnvBool("ENABLE_TUI", false),
		UIRefreshRate: time.Duration(getEnvInt("UI_REFRESH_MS", 500)) * time.Millisecond,

		LogLevel: getEnv("LOG_LEVEL", "INFO"),
		LogFile:  getEnv("LOG_FILE", "polyinsider.log"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.DataAPIURL == "" {
		return fmt.Errorf("DATA_API_URL is required")
	}

	if c.TradeFetchLimit < 1 {
		return fmt.Errorf("TRADE_FETCH_LIMIT must be at least 1")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}

	if c.MinTradeSizeUSD < 0 {
		return fmt.Errorf("MIN_TRADE_SIZE_USD must not be negative")
	}

	if c.MaxUniqueMarkets < 0 {
		return fmt.Errorf("MAX_UNIQUE_MARKETS must not be negative")
	}

	if c.MaxPriceThreshold <= 0 {
		return fmt.Errorf("MAX_PRICE_THRESHOLD must be positive")
	}

	if c.ClusterWindow <= 0 {
		return fmt.Errorf("CLUSTER_WINDOW_SECONDS must be positive")
	}

	if c.ClusterMinWallets < 1 {
		return fmt.Errorf("CLUSTER_MIN_WALLETS must be at least 1")
	}

	if c.VolumeSpikeMultiplier <= 0 {
		return fmt.Errorf("VOLUME_SPIKE_MULTIPLIER must be positive")
	}

	if (c.TelegramBotToken == "") != (c.TelegramChatID == "") {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set together")
	}

	// 0 disables the metrics endpoint
	if c.PrometheusPort < 0 || c.PrometheusPort > 65535 {
		return fmt.Errorf("PROMETHEUS_PORT must be between 0 and 65535")
	}

	return nil
}

// TelegramEnabled reports whether both Telegram credentials are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// MaskedTelegramToken returns the bot token with most characters hidden for logging.
func (c *Config) MaskedTelegramToken() string {
	return maskSecret(c.TelegramBotToken)
}

// MaskedDiscordWebhook returns the webhook URL with most characters hidden for logging.
func (c *Config) MaskedDiscordWebhook() string {
	return maskSecret(c.DiscordWebhookURL)
}

// maskSecret hides all but the first and last 4 characters of a secret.
func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean or returns a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a lowercased,
// trimmed list or returns a default.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		out := make([]string, len(defaultValue))
		copy(out, defaultValue)
		return out
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
