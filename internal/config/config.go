package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// External channel providers
	ProviderBaseURL string
	ProviderTimeout time.Duration
	ProviderRate    int // provider calls per second per channel

	// Delivery worker pool
	Workers int

	// Per (recipient, channel) fixed-window throttle
	ThrottleLimit  int
	ThrottleWindow time.Duration

	// Retry backoff: min(RetryBase * 2^attempt, RetryMax) with jitter
	RetryBase   time.Duration
	RetryMax    time.Duration
	MaxAttempts int

	// Dispatcher
	TickInterval   time.Duration
	GraceWindow    time.Duration // how far in the past schedule_at may be at enqueue
	MaterializeCap int           // rule occurrences materialized per tick, at most

	// Delivery tracker inbound event buffer
	TrackerBuffer int
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", "http://localhost:9090"),
		ProviderTimeout: getDuration("PROVIDER_TIMEOUT", 10*time.Second),
		ProviderRate:    getInt("PROVIDER_RATE_PER_CHANNEL", 50),

		Workers: getInt("DELIVERY_WORKERS", 10),

		ThrottleLimit:  getInt("THROTTLE_LIMIT", 5),
		ThrottleWindow: getDuration("THROTTLE_WINDOW", time.Minute),

		RetryBase:   getDuration("RETRY_BASE_DELAY", 30*time.Second),
		RetryMax:    getDuration("RETRY_MAX_DELAY", 30*time.Minute),
		MaxAttempts: getInt("MAX_ATTEMPTS", 3),

		TickInterval:   getDuration("TICK_INTERVAL", time.Minute),
		GraceWindow:    getDuration("GRACE_WINDOW", 5*time.Minute),
		MaterializeCap: getInt("MATERIALIZE_CAP", 8),

		TrackerBuffer: getInt("TRACKER_BUFFER", 1024),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
