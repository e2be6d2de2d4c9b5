// Package config provides configuration management for the lesson sync service.
// It handles loading configuration from environment variables with sensible
// defaults and validates the configuration to ensure the service starts safely.
//
// The package supports multiple database backends (SQLite and PostgreSQL) for
// the lesson store, optional Redis for distributed sync coordination, and the
// credentials of the external booking sources.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./lesson_sync.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Redis Configuration (optional, enables the distributed sync lock):
//   - REDIS_ADDRESS: Redis server address (empty disables Redis)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Security Configuration:
//   - JWT_SECRET: JWT signing secret (required, minimum 32 characters)
//
// Booking Sources:
//   - GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET / GOOGLE_REFRESH_TOKEN:
//     delegated Google Calendar credential
//   - GOOGLE_CALENDAR_ID: calendar to pull from (default: primary)
//   - CALCOM_API_URL: Cal.com API base URL (default: https://api.cal.com/v1)
//   - CALCOM_API_KEY: Cal.com API key
//   - CALCOM_WEBHOOK_SECRET: HMAC secret for inbound Cal.com webhooks
//   - ICS_FEED_URL: optional published ICS calendar URL
//
// Sync Settings:
//   - SYNC_WINDOW_DAYS: pull-window length in days (default: 90)
//   - SYNC_SCHEDULE: cron spec for the automatic trigger (default: @every 15m)
//   - SYNC_MIN_INTERVAL: throttle between automatic syncs (default: 1h)
//   - DEFAULT_LESSON_LOCATION: location stamped on lessons with no venue
//     (default: Main Court)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the lesson sync service.
// All string fields correspond to environment variables that can be set
// to override the default values.
//
// The configuration is loaded using the Load() function and should be
// validated using the Validate() method before use.
type Config struct {
	// Application settings
	Port     string // Server port number
	LogLevel string // Logging level (debug, info, warn, error)

	// Database configuration
	DatabaseType     string // Database type: "sqlite" or "postgres"
	DatabasePath     string // Path to SQLite database file
	PostgresHost     string // PostgreSQL host address
	PostgresPort     string // PostgreSQL port number
	PostgresDB       string // PostgreSQL database name
	PostgresUser     string // PostgreSQL username
	PostgresPassword string // PostgreSQL password
	PostgresSSLMode  string // PostgreSQL SSL mode (disable, require, etc.)

	// Redis configuration for the distributed sync lock
	RedisAddress  string // Redis server address (host:port), empty disables Redis
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size

	// JWT authentication configuration
	JWTSecret string // Secret key for JWT token signing (required)

	// Google Calendar source
	GoogleClientID     string // OAuth2 client id
	GoogleClientSecret string // OAuth2 client secret
	GoogleRefreshToken string // Delegated refresh token
	GoogleCalendarID   string // Calendar to pull events from

	// Cal.com source
	CalComAPIURL        string // Cal.com API base URL
	CalComAPIKey        string // Cal.com API key
	CalComWebhookSecret string // HMAC secret for inbound webhooks

	// ICS feed source
	ICSFeedURL string // Published ICS calendar URL

	// Sync settings
	SyncWindowDays        string // Pull-window length in days
	SyncSchedule          string // Cron spec for the automatic trigger
	SyncMinInterval       string // Throttle between automatic syncs
	DefaultLessonLocation string // Fallback location for lessons with no venue
}

// Load creates a new Config instance with values loaded from environment
// variables. If an environment variable is not set, the corresponding
// default value is used.
//
// This function does not validate the configuration - call Validate() on
// the returned Config to ensure all required values are properly set.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./lesson_sync.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "lesson_sync"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		GoogleCalendarID:   getEnv("GOOGLE_CALENDAR_ID", "primary"),

		CalComAPIURL:        getEnv("CALCOM_API_URL", "https://api.cal.com/v1"),
		CalComAPIKey:        getEnv("CALCOM_API_KEY", ""),
		CalComWebhookSecret: getEnv("CALCOM_WEBHOOK_SECRET", ""),

		ICSFeedURL: getEnv("ICS_FEED_URL", ""),

		SyncWindowDays:        getEnv("SYNC_WINDOW_DAYS", "90"),
		SyncSchedule:          getEnv("SYNC_SCHEDULE", "@every 15m"),
		SyncMinInterval:       getEnv("SYNC_MIN_INTERVAL", "1h"),
		DefaultLessonLocation: getEnv("DEFAULT_LESSON_LOCATION", "Main Court"),
	}
}

// getEnv retrieves an environment variable value or returns a default
// value if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// WindowDays returns the validated pull-window length.
func (c *Config) WindowDays() int {
	days, err := strconv.Atoi(c.SyncWindowDays)
	if err != nil || days < 1 {
		return 90
	}
	return days
}

// MinInterval returns the validated auto-sync throttle.
func (c *Config) MinInterval() time.Duration {
	d, err := time.ParseDuration(c.SyncMinInterval)
	if err != nil || d < 0 {
		return time.Hour
	}
	return d
}

// Validate performs comprehensive validation on the configuration to
// ensure all required fields are present and all values are valid.
//
// The application should call this method after loading configuration
// and before starting to ensure safe operation.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
		// Valid database types
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if days, err := strconv.Atoi(c.SyncWindowDays); err != nil || days < 1 {
		return fmt.Errorf("SYNC_WINDOW_DAYS must be a positive number of days")
	}

	if _, err := time.ParseDuration(c.SyncMinInterval); err != nil {
		return fmt.Errorf("SYNC_MIN_INTERVAL must be a valid duration (e.g., '1h', '30m')")
	}

	// A Google credential is all-or-nothing
	googleSet := c.GoogleClientID != "" || c.GoogleClientSecret != "" || c.GoogleRefreshToken != ""
	googleComplete := c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
	if googleSet && !googleComplete {
		return fmt.Errorf("GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN must be set together")
	}

	return nil
}
