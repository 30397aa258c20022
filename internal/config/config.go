package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	// HTTP Server
	Port               string `mapstructure:"port"`
	RateLimitPerMinute int    `mapstructure:"rate_limit_per_minute"`

	// Storage
	DataBackend  string `mapstructure:"data_backend"`
	SQLiteDBPath string `mapstructure:"sqlite_db_path"`
	DatabaseURL  string `mapstructure:"database_url"`
	ListLimit    int    `mapstructure:"list_limit"`

	// Auth
	AuthJWTSecret   string `mapstructure:"auth_jwt_secret"`
	AuthJWTIssuer   string `mapstructure:"auth_jwt_issuer"`
	AuthJWTAudience string `mapstructure:"auth_jwt_audience"`
	AuthUserPrefix  string `mapstructure:"auth_user_prefix"`

	// AMQP
	AMQPURL      string `mapstructure:"amqp_url"`
	AMQPExchange string `mapstructure:"amqp_exchange"`
	AMQPQueue    string `mapstructure:"amqp_queue"`

	// Worker metrics listener, e.g. ":9091"; empty disables it.
	WorkerMetricsAddr string `mapstructure:"worker_metrics_addr"`

	// Google Sheets mirror
	GoogleSpreadsheetID      string `mapstructure:"google_spreadsheet_id"`
	GoogleSheetName          string `mapstructure:"google_sheet_name"`
	GoogleServiceAccountFile string `mapstructure:"google_service_account_file"`
	GoogleServiceAccountJSON string `mapstructure:"google_service_account_json"`

	// Reports
	ReportCacheTTL time.Duration `mapstructure:"report_cache_ttl"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

var defaults = map[string]any{
	"port":                        "8081",
	"rate_limit_per_minute":       60,
	"data_backend":                "sqlite",
	"sqlite_db_path":              "./data/fintrack.db",
	"database_url":                "",
	"list_limit":                  100,
	"auth_jwt_secret":             "",
	"auth_jwt_issuer":             "",
	"auth_jwt_audience":           "",
	"auth_user_prefix":            "user_",
	"amqp_url":                    "",
	"amqp_exchange":               "fintrack",
	"amqp_queue":                  "transaction_events",
	"worker_metrics_addr":         "",
	"google_spreadsheet_id":       "",
	"google_sheet_name":           "Transactions",
	"google_service_account_file": "",
	"google_service_account_json": "",
	"report_cache_ttl":            5 * time.Minute,
	"log_level":                   "info",
	"log_format":                  "text",
}

var validBackends = []string{"memory", "sqlite", "postgres"}

// Load reads configuration from the environment. When CONFIG_FILE names a
// YAML file its values are used as a base; environment variables win.
func Load() (*Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.trim()
	return &cfg, nil
}

func (c *Config) trim() {
	c.Port = strings.TrimSpace(c.Port)
	c.DataBackend = strings.ToLower(strings.TrimSpace(c.DataBackend))
	c.SQLiteDBPath = strings.TrimSpace(c.SQLiteDBPath)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.AMQPURL = strings.TrimSpace(c.AMQPURL)
	c.WorkerMetricsAddr = strings.TrimSpace(c.WorkerMetricsAddr)
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
}

// Validate validates the server configuration and returns an error listing
// every problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	if c.ListLimit < 1 || c.ListLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid list limit %d: must be between 1 and 1000", c.ListLimit))
	}

	if strings.TrimSpace(c.AuthJWTSecret) == "" {
		errors = append(errors, "AUTH_JWT_SECRET is required")
	} else if len(c.AuthJWTSecret) < 32 {
		errors = append(errors, "AUTH_JWT_SECRET must be at least 32 bytes")
	}

	errors = append(errors, c.validateAMQP()...)

	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if c.ReportCacheTTL < 0 || c.ReportCacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must be between 0 and 24 hours", c.ReportCacheTTL))
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateWorker validates the settings the mirror worker needs.
func (c *Config) ValidateWorker() error {
	var errors []string

	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required for the worker")
	}
	errors = append(errors, c.validateAMQP()...)

	if c.WorkerMetricsAddr != "" {
		if _, port, err := net.SplitHostPort(c.WorkerMetricsAddr); err != nil || port == "" {
			errors = append(errors, fmt.Sprintf("invalid worker metrics address '%s': must be host:port", c.WorkerMetricsAddr))
		}
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" &&
		os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided with GOOGLE_SPREADSHEET_ID")
	}
	if c.GoogleServiceAccountFile != "" {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func (c *Config) validateAMQP() []string {
	if c.AMQPURL == "" {
		return nil
	}
	var errors []string
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
	return errors
}
