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

	// Journal (primary JSON store, the wire contract)
	DataFile string

	// Local clock: fixed offset of the tracked day, e.g. "+05:30"
	UTCOffset string

	// Backend selection for the dashboard: json or sqlite
	DataBackend string

	// SQLite archive
	SQLiteDBPath string

	// AMQP update bus
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export (optional, worker only)
	GoogleSpreadsheetID string
	GoogleLogSheet      string
	GoogleSummarySheet  string

	// Worker
	ReconcileInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DataFile:    getEnv("DATA_FILE", "./data/work_logs.json"),
		UTCOffset:   getEnv("UTC_OFFSET", "+05:30"),
		DataBackend: getEnv("DATA_BACKEND", "json"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/worklog.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "worklog"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "log_updates"),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleLogSheet:      getEnv("GOOGLE_LOG_SHEET_NAME", "Work Log"),
		GoogleSummarySheet:  getEnv("GOOGLE_SUMMARY_SHEET_NAME", "Summary"),

		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
	}
}

// Location resolves the configured fixed offset into a time.Location.
func (c *Config) Location() (*time.Location, error) {
	secs, err := ParseUTCOffset(c.UTCOffset)
	if err != nil {
		return nil, err
	}
	return time.FixedZone("UTC"+c.UTCOffset, secs), nil
}

// ParseUTCOffset parses "+HH:MM" / "-HH:MM" into seconds east of UTC.
func ParseUTCOffset(offset string) (int, error) {
	if len(offset) != 6 || (offset[0] != '+' && offset[0] != '-') || offset[3] != ':' {
		return 0, fmt.Errorf("invalid UTC offset %q: expected format +HH:MM", offset)
	}
	hours, err := strconv.Atoi(offset[1:3])
	if err != nil {
		return 0, fmt.Errorf("invalid UTC offset %q: bad hours", offset)
	}
	minutes, err := strconv.Atoi(offset[4:6])
	if err != nil {
		return 0, fmt.Errorf("invalid UTC offset %q: bad minutes", offset)
	}
	if hours > 14 || minutes > 59 {
		return 0, fmt.Errorf("invalid UTC offset %q: out of range", offset)
	}
	secs := hours*3600 + minutes*60
	if offset[0] == '-' {
		secs = -secs
	}
	return secs, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := ParseUTCOffset(c.UTCOffset); err != nil {
		errors = append(errors, err.Error())
	}

	// Validate data backend
	validBackends := []string{"json", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "json" && c.DataFile == "" {
		errors = append(errors, "data file path cannot be empty when using json backend")
	}

	// Validate SQLite configuration if the archive path is set
	if c.DataBackend == "sqlite" || c.SQLiteDBPath != "" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate Google export configuration if enabled
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleLogSheet == "" {
			errors = append(errors, "Google log sheet name cannot be empty when a spreadsheet ID is provided")
		}
		if c.GoogleSummarySheet == "" {
			errors = append(errors, "Google summary sheet name cannot be empty when a spreadsheet ID is provided")
		}
	}

	// Validate worker configuration
	if c.ReconcileInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at least 1 second", c.ReconcileInterval))
	} else if c.ReconcileInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid reconcile interval %v: must be at most 24 hours", c.ReconcileInterval))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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
