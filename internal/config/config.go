package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/govalues/money"
	"github.com/joho/godotenv"
)

// Backend values for LEDGER_BACKEND.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Medium values for LOCAL_MEDIUM.
const (
	MediumSQLite = "sqlite"
	MediumMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	// Ledger store selection
	Backend     string
	DatabaseURL string
	Migrate     bool
	LocalMedium string
	SQLitePath  string

	// Summaries
	Currency string

	// Notifications
	AMQPURL          string
	AMQPExchange     string
	AMQPRoutingKey   string
	NotificationFeed int

	// Auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		Backend:     strings.ToLower(getEnv("LEDGER_BACKEND", BackendLocal)),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Migrate:     getEnvBool("MIGRATE", true),
		LocalMedium: strings.ToLower(getEnv("LOCAL_MEDIUM", MediumSQLite)),
		SQLitePath:  getEnv("SQLITE_PATH", "./data/expenses.db"),

		Currency: strings.ToUpper(getEnv("LEDGER_CURRENCY", "USD")),

		AMQPURL:          strings.TrimSpace(os.Getenv("AMQP_URL")),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPRoutingKey:   getEnv("AMQP_ROUTING_KEY", "notices"),
		NotificationFeed: getEnvInt("NOTIFICATION_FEED_SIZE", 50),

		JWTSecret:   strings.TrimSpace(os.Getenv("JWT_HS256_SECRET")),
		JWTIssuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "json")),
	}
	// DATABASE_URL alone is enough to pick the remote store
	if os.Getenv("LEDGER_BACKEND") == "" && cfg.DatabaseURL != "" {
		cfg.Backend = BackendRemote
	}
	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.Backend {
	case BackendRemote:
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using the remote backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: scheme must be 'postgres' or 'postgresql'")
		}
	case BackendLocal:
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.Backend, []string{BackendLocal, BackendRemote}))
	}

	// settings always live in the local medium, even with the remote backend
	validMedia := []string{MediumSQLite, MediumMemory}
	if !slices.Contains(validMedia, c.LocalMedium) {
		errors = append(errors, fmt.Sprintf("invalid local medium '%s': must be one of %v", c.LocalMedium, validMedia))
	}
	if c.LocalMedium == MediumSQLite && c.SQLitePath == "" {
		errors = append(errors, "SQLite path cannot be empty when using the sqlite medium")
	}

	if _, err := money.ParseCurr(c.Currency); err != nil {
		errors = append(errors, fmt.Sprintf("invalid currency '%s': must be an ISO 4217 code", c.Currency))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if c.NotificationFeed < 1 || c.NotificationFeed > 1000 {
		errors = append(errors, fmt.Sprintf("invalid notification feed size %d: must be between 1 and 1000", c.NotificationFeed))
	}

	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'json' or 'text'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
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
