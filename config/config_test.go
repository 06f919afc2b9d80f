// Package config provides configuration management and environment variable handling for the application
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "tenderintel", cfg.Database.Name)
	assert.Equal(t, 3, cfg.Health.FailureThreshold)
	assert.Equal(t, 7, cfg.Notifications.DeadlineAlertDays)
	assert.Equal(t, 30*time.Second, cfg.Scraping.FetchTimeout)
	assert.Equal(t, 3, cfg.Scraping.MaxConcurrentScrapes)
	assert.Equal(t, "@every 1h", cfg.Scheduler.FetchAllSpec)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("HEALTH_FAILURE_THRESHOLD", "5")
	t.Setenv("NOTIFY_ENABLE_EMAIL", "true")
	t.Setenv("SMTP_HOST", "smtp.internal")
	t.Setenv("SCRAPE_FETCH_TIMEOUT", "45s")
	t.Setenv("SCHED_FETCH_ALL", "@every 30m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, 5, cfg.Health.FailureThreshold)
	assert.True(t, cfg.Notifications.EnableEmail)
	assert.Equal(t, 45*time.Second, cfg.Scraping.FetchTimeout)
	assert.Equal(t, "@every 30m", cfg.Scheduler.FetchAllSpec)
}

func TestLoadInvalidValuesFallBackToDefaults(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("SCRAPE_FETCH_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 30*time.Second, cfg.Scraping.FetchTimeout)
}

func TestValidateRejectsInconsistentConfig(t *testing.T) {
	t.Setenv("NOTIFY_ENABLE_EMAIL", "true")
	t.Setenv("SMTP_HOST", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_HOST")
}

func TestValidateThresholdBounds(t *testing.T) {
	t.Setenv("HEALTH_FAILURE_THRESHOLD", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEALTH_FAILURE_THRESHOLD")
}

func TestDatabaseDSN(t *testing.T) {
	dsn := DatabaseConfig{
		Host: "localhost", Port: 5432, User: "app", Password: "secret",
		Name: "tenderintel", SSLMode: "disable",
	}.DSN()
	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=tenderintel")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "TimeZone=UTC")
}

func TestCacheAddr(t *testing.T) {
	assert.Equal(t, "redis.internal:6380", CacheConfig{Host: "redis.internal", Port: 6380}.Addr())
}
