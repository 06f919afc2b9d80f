// Package config provides configuration management and environment variable handling for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the service
type Config struct {
	Database      DatabaseConfig      `json:"database"`
	Cache         CacheConfig         `json:"cache"`
	Scraping      ScrapingConfig      `json:"scraping"`
	Notifications NotificationsConfig `json:"notifications"`
	Health        HealthConfig        `json:"health"`
	Scheduler     SchedulerConfig     `json:"scheduler"`
	Metrics       MetricsConfig       `json:"metrics"`
	Logging       LoggingConfig       `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

// DSN builds a Postgres connection string from the database settings
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Addr returns the redis host:port pair
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type ScrapingConfig struct {
	FetchTimeout         time.Duration `json:"fetch_timeout"`
	MaxAttempts          int           `json:"max_attempts"`
	MaxConcurrentScrapes int           `json:"max_concurrent_scrapes"`
	UserAgent            string        `json:"user_agent"`
}

type NotificationsConfig struct {
	EnableEmail       bool `json:"enable_email"`
	EnableDesktop     bool `json:"enable_desktop"`
	DeadlineAlertDays int  `json:"deadline_alert_days"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	FromEmail    string `json:"from_email"`
	FromName     string `json:"from_name"`
}

type HealthConfig struct {
	FailureThreshold int `json:"failure_threshold"`
}

type SchedulerConfig struct {
	FetchAllSpec     string        `json:"fetch_all_spec"`
	DeadlineSpec     string        `json:"deadline_spec"`
	RematchSpec      string        `json:"rematch_spec"`
	ExpireSpec       string        `json:"expire_spec"`
	CleanupSpec      string        `json:"cleanup_spec"`
	KeywordIndexTTL  time.Duration `json:"keyword_index_ttl"`
	ShutdownTimeout  time.Duration `json:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
}

type LoggingConfig struct {
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// Load reads configuration from environment variables, seeding them from a
// .env file when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "tenderintel"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", false),
			Host:     getEnvString("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Scraping: ScrapingConfig{
			FetchTimeout:         getEnvDuration("SCRAPE_FETCH_TIMEOUT", 30*time.Second),
			MaxAttempts:          getEnvInt("SCRAPE_MAX_ATTEMPTS", 3),
			MaxConcurrentScrapes: getEnvInt("SCRAPE_MAX_CONCURRENT", 3),
			UserAgent:            getEnvString("SCRAPE_USER_AGENT", ""),
		},
		Notifications: NotificationsConfig{
			EnableEmail:       getEnvBool("NOTIFY_ENABLE_EMAIL", false),
			EnableDesktop:     getEnvBool("NOTIFY_ENABLE_DESKTOP", true),
			DeadlineAlertDays: getEnvInt("NOTIFY_DEADLINE_ALERT_DAYS", 7),
			SMTPHost:          getEnvString("SMTP_HOST", ""),
			SMTPPort:          getEnvInt("SMTP_PORT", 587),
			SMTPUsername:      getEnvString("SMTP_USERNAME", ""),
			SMTPPassword:      getEnvString("SMTP_PASSWORD", ""),
			FromEmail:         getEnvString("SMTP_FROM_EMAIL", "alerts@tenderintel.local"),
			FromName:          getEnvString("SMTP_FROM_NAME", "Tender Intel"),
		},
		Health: HealthConfig{
			FailureThreshold: getEnvInt("HEALTH_FAILURE_THRESHOLD", 3),
		},
		Scheduler: SchedulerConfig{
			FetchAllSpec:    getEnvString("SCHED_FETCH_ALL", "@every 1h"),
			DeadlineSpec:    getEnvString("SCHED_DEADLINE_CHECK", "0 8 * * *"),
			RematchSpec:     getEnvString("SCHED_REMATCH", "@every 6h"),
			ExpireSpec:      getEnvString("SCHED_EXPIRE", "30 0 * * *"),
			CleanupSpec:     getEnvString("SCHED_CLEANUP", "0 1 * * 0"),
			KeywordIndexTTL: getEnvDuration("KEYWORD_INDEX_TTL", 5*time.Minute),
			ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Host:    getEnvString("METRICS_HOST", "127.0.0.1"),
			Port:    getEnvInt("METRICS_PORT", 9290),
		},
		Logging: LoggingConfig{
			FilePath:   getEnvString("LOG_FILE_PATH", "logs/tender-intel.log"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Host == "" {
		errs = append(errs, "DB_HOST is required")
	}
	if c.Database.Name == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if c.Notifications.EnableEmail && c.Notifications.SMTPHost == "" {
		errs = append(errs, "SMTP_HOST is required when email notifications are enabled")
	}
	if c.Notifications.DeadlineAlertDays < 0 {
		errs = append(errs, "NOTIFY_DEADLINE_ALERT_DAYS must not be negative")
	}
	if c.Health.FailureThreshold < 1 {
		errs = append(errs, "HEALTH_FAILURE_THRESHOLD must be at least 1")
	}
	if c.Scraping.MaxConcurrentScrapes < 1 {
		errs = append(errs, "SCRAPE_MAX_CONCURRENT must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
