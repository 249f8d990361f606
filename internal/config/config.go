package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Local mirror
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Drive / Sheets
	GoogleDriveFolderID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Exchange rate API
	RateAPIURL      string
	RateCacheTTL    time.Duration
	RateRefreshSpan time.Duration

	// Confirmation drafts
	SessionTTL time.Duration

	// Recurring worker
	RecurringCheckInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "memory"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finanzas.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finanzas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "finanzas_events"),

		GoogleDriveFolderID:      getEnv("GOOGLE_DRIVE_FOLDER_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		RateAPIURL:      getEnv("RATE_API_URL", "https://ve.dolarapi.com/v1/dolares"),
		RateCacheTTL:    getEnvDuration("RATE_CACHE_TTL", 15*time.Minute),
		RateRefreshSpan: getEnvDuration("RATE_REFRESH_INTERVAL", 0),

		SessionTTL: getEnvDuration("SESSION_TTL", 10*time.Minute),

		RecurringCheckInterval: getEnvDuration("RECURRING_CHECK_INTERVAL", time.Hour),
	}
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "memory", "sheets":
	default:
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be 'memory' or 'sheets'", c.DataBackend))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.DataBackend == "sheets" {
		if c.GoogleDriveFolderID == "" {
			errs = append(errs, "GOOGLE_DRIVE_FOLDER_ID is required when using the sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" &&
			os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errs = append(errs, "service account credentials are required when using the sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errs = append(errs, fmt.Sprintf("service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.SessionTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid session TTL %v: must be at least 1 second", c.SessionTTL))
	}
	if c.RecurringCheckInterval < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid recurring check interval %v: must be at least 1 minute", c.RecurringCheckInterval))
	}
	if c.RateCacheTTL < time.Second {
		errs = append(errs, fmt.Sprintf("invalid rate cache TTL %v: must be at least 1 second", c.RateCacheTTL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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
