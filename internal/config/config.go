// Package config provides process configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the auth core. Signing settings are
// intentionally not part of this struct: they are owned by the settings cache
// so that key rotation can take effect without a restart.
type Config struct {
	// Environment is the deployment mode ("production" or "development").
	Environment string

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// RedisAddress is the remote store address. Empty selects in-memory
	// backends everywhere.
	RedisAddress string
	// RedisPassword is the remote store password.
	RedisPassword string
	// RedisDB is the remote store database number.
	RedisDB int

	// PostgresDSN is the connection string for the durable revocation store.
	// Empty disables blacklist persistence.
	PostgresDSN string

	// BlacklistMaxEntries bounds the in-memory blacklist tier.
	BlacklistMaxEntries int
	// BlacklistSweepInterval is the period of the background blacklist sweep.
	BlacklistSweepInterval time.Duration

	// LoginMaxAttempts is the attempt budget per identifier.
	LoginMaxAttempts int
	// LoginWindow is the sliding window for login attempts.
	LoginWindow time.Duration

	// ThrottleRate is the per-connection refill rate in messages per second.
	ThrottleRate float64
	// ThrottleBurst is the per-connection bucket capacity.
	ThrottleBurst int
	// MaxConnections is the concurrent connection ceiling.
	MaxConnections int
}

// Load loads configuration from environment variables and an optional .env
// file.
func Load() *Config {
	loadDotEnv()

	return &Config{
		Environment: env.GetString("AUTHCORE_ENVIRONMENT", "production"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),

		RedisAddress:  env.GetString("AUTHCORE_REDIS_ADDRESS", ""),
		RedisPassword: env.GetString("AUTHCORE_REDIS_PASSWORD", ""),
		RedisDB:       env.GetInt("AUTHCORE_REDIS_DB", 0),

		PostgresDSN: env.GetString("AUTHCORE_POSTGRES_DSN", ""),

		BlacklistMaxEntries:    env.GetInt("AUTHCORE_BLACKLIST_MAX_ENTRIES", 10000),
		BlacklistSweepInterval: env.GetDuration("AUTHCORE_BLACKLIST_SWEEP_MINUTES", 5, time.Minute),

		LoginMaxAttempts: env.GetInt("AUTHCORE_LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      env.GetDuration("AUTHCORE_LOGIN_WINDOW_SECONDS", 60, time.Second),

		ThrottleRate:   env.GetFloat64("AUTHCORE_THROTTLE_RATE", 10.0),
		ThrottleBurst:  env.GetInt("AUTHCORE_THROTTLE_BURST", 20),
		MaxConnections: env.GetInt("AUTHCORE_MAX_CONNECTIONS", 1000),
	}
}

// IsDevelopment reports whether the process runs in development mode.
// Development mode exposes diagnostic detail on authentication failures.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// loadDotEnv searches for a .env file from the current directory up to the
// root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
