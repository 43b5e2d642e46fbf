package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Load returns the defaults overridden by any RIDESYNC_* environment
// variables, then validates the result.
func Load() (*Config, error) {
	cfg := NewDefaultConfig()

	cfg.Server.Port = getEnv("RIDESYNC_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvAsDuration("RIDESYNC_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvAsDuration("RIDESYNC_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.AllowedOrigins = getEnvAsList("RIDESYNC_ALLOWED_ORIGINS", cfg.Server.AllowedOrigins)

	cfg.Ledger.BlockTime = getEnvAsDuration("RIDESYNC_BLOCK_TIME", cfg.Ledger.BlockTime)
	cfg.Ledger.Store = getEnv("RIDESYNC_STORE", cfg.Ledger.Store)
	cfg.Ledger.MySQLDSN = getEnv("RIDESYNC_MYSQL_DSN", cfg.Ledger.MySQLDSN)
	cfg.Ledger.Endpoint = getEnv("RIDESYNC_LEDGER_ENDPOINT", cfg.Ledger.Endpoint)

	cfg.Sync.RideInterval = getEnvAsDuration("RIDESYNC_RIDE_INTERVAL", cfg.Sync.RideInterval)
	cfg.Sync.FeedInterval = getEnvAsDuration("RIDESYNC_FEED_INTERVAL", cfg.Sync.FeedInterval)
	cfg.Sync.MaxReadFailures = getEnvAsInt("RIDESYNC_MAX_READ_FAILURES", cfg.Sync.MaxReadFailures)
	cfg.Sync.ReadTimeout = getEnvAsDuration("RIDESYNC_LEDGER_READ_TIMEOUT", cfg.Sync.ReadTimeout)
	cfg.Sync.LocationMinMove = getEnvAsFloat64("RIDESYNC_LOCATION_MIN_MOVE", cfg.Sync.LocationMinMove)

	cfg.Pricing.DefaultFare = getEnv("RIDESYNC_DEFAULT_FARE", cfg.Pricing.DefaultFare)

	cfg.Events.Backend = getEnv("RIDESYNC_EVENTS", cfg.Events.Backend)
	cfg.Events.Redis.Host = getEnv("REDIS_HOST", cfg.Events.Redis.Host)
	cfg.Events.Redis.Port = getEnvAsInt("REDIS_PORT", cfg.Events.Redis.Port)
	cfg.Events.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Events.Redis.Password)
	cfg.Events.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Events.Redis.DB)
	cfg.Events.AMQP.URL = getEnv("AMQP_URL", cfg.Events.AMQP.URL)
	cfg.Events.AMQP.Exchange = getEnv("AMQP_EXCHANGE", cfg.Events.AMQP.Exchange)

	cfg.Geocode.GoogleAPIKey = getEnv("GOOGLE_MAPS_API_KEY", cfg.Geocode.GoogleAPIKey)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)
	cfg.Log.Output = getEnv("LOG_OUTPUT", cfg.Log.Output)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated value, dropping empty items.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
