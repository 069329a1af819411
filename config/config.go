package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Bar feed
	FeedWSURL      string
	FeedRESTURL    string
	FeedAPIKey     string
	FeedTOTPSecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	LogLevel      string

	// Subscription (comma-separated symbols, e.g. "NIFTY,BANKNIFTY")
	Symbols string

	// SessionGating connects the feed only during NSE trading hours,
	// with a fresh TOTP login at each session open.
	SessionGating bool

	// Brick sizing
	FixedBrickSize   float64
	AutoBrickSize    bool
	DefaultBrickSize float64
	ATRPeriod        int
	ATRMultiplier    float64
	ReversalWidths   float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		FeedWSURL:      mustEnv("FEED_WS_URL"),
		FeedRESTURL:    getEnv("FEED_REST_URL", ""),
		FeedAPIKey:     mustEnv("FEED_API_KEY"),
		FeedTOTPSecret: mustEnv("FEED_TOTP_SECRET"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/bars.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		Symbols: getEnv("SYMBOLS", "NIFTY"),

		SessionGating: getEnvBool("SESSION_GATING", false),

		FixedBrickSize:   getEnvFloat("FIXED_BRICK_SIZE", 0),
		AutoBrickSize:    getEnvBool("AUTO_BRICK_SIZE", true),
		DefaultBrickSize: getEnvFloat("DEFAULT_BRICK_SIZE", 10),
		ATRPeriod:        getEnvInt("ATR_PERIOD", 14),
		ATRMultiplier:    getEnvFloat("ATR_MULTIPLIER", 1.0),
		ReversalWidths:   getEnvFloat("REVERSAL_WIDTHS", 2.0),
	}
}

// ParseSymbols splits the Symbols string into a deduplicated slice.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	seen := make(map[string]bool, len(parts))
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		symbols = append(symbols, p)
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s: %q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
