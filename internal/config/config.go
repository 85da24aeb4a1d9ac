// Package config provides configuration management for the account tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	CRM       CRMConfig
	StatusAPI StatusAPIConfig
	Worker    WorkerConfig
	Tables    TablesConfig
	Logging   LoggingConfig
}

// ServerConfig holds read API server configuration
type ServerConfig struct {
	Host        string
	Port        string
	BearerToken string // optional; open access when empty
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CRMConfig names the roster table and its columns. The CRM schema is owned
// upstream, so all identifiers are configurable.
type CRMConfig struct {
	Table          string
	AccountIDCol   string
	CustomerCol    string
	TemplateCol    string
	PageSize       int
}

// StatusAPIConfig holds the external trading status API configuration
type StatusAPIConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// WorkerConfig holds classification worker configuration
type WorkerConfig struct {
	RateDelay     time.Duration // pause between status fetches
	RunNowOnStart bool          // run one update pass immediately on start
}

// TablesConfig names the destination bucket tables and the baseline table
type TablesConfig struct {
	Active    string
	Blown     string
	Purchases string
	Plan50k   string
	Baseline  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnv("SERVER_PORT", "8080"),
			BearerToken: getEnv("API_BEARER_TOKEN", ""),
		},
		Postgres: PostgresConfig{
			Host:           getEnv("POSTGRES_HOST", "localhost"),
			Port:           getEnv("POSTGRES_PORT", "5432"),
			Database:       getEnv("POSTGRES_DB", "account_tracker"),
			User:           getEnv("POSTGRES_USER", "tracker"),
			Password:       getEnv("POSTGRES_PASSWORD", ""),
			MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 10),
		},
		Redis: RedisConfig{
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
		},
		CRM: CRMConfig{
			Table:        getEnv("CRM_TABLE", "crm_accounts"),
			AccountIDCol: getEnv("CRM_COL_ACCOUNT_ID", "account_id"),
			CustomerCol:  getEnv("CRM_COL_CUSTOMER_NAME", "customer_name"),
			TemplateCol:  getEnv("CRM_COL_TEMPLATE", "template_name"),
			PageSize:     getEnvAsInt("CRM_PAGE_SIZE", 1000),
		},
		StatusAPI: StatusAPIConfig{
			URL:     getEnv("STATUS_API_URL", ""),
			Token:   getEnv("STATUS_API_TOKEN", ""),
			Timeout: getEnvAsDuration("STATUS_API_TIMEOUT", 20*time.Second),
		},
		Worker: WorkerConfig{
			RateDelay:     getEnvAsDuration("WORKER_RATE_DELAY", 200*time.Millisecond),
			RunNowOnStart: getEnvAsBool("WORKER_RUN_NOW_ON_START", true),
		},
		Tables: TablesConfig{
			Active:    getEnv("TABLE_ACTIVE", "accounts_active"),
			Blown:     getEnv("TABLE_BLOWN", "accounts_blown"),
			Purchases: getEnv("TABLE_PURCHASES", "accounts_purchases"),
			Plan50k:   getEnv("TABLE_PLAN50K", "accounts_plan50k"),
			Baseline:  getEnv("TABLE_BASELINE", "equity_baseline"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// ValidateWorker checks the settings the classification worker cannot run
// without. Called before the first pass; failures are fatal at startup.
func (c *Config) ValidateWorker() error {
	if c.StatusAPI.URL == "" {
		return fmt.Errorf("STATUS_API_URL is not set")
	}
	if c.StatusAPI.Token == "" {
		return fmt.Errorf("STATUS_API_TOKEN is not set")
	}
	return nil
}

// DatabaseURL builds a postgres:// URL for the migration runner
func (c *PostgresConfig) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
