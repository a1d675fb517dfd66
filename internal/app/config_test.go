package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "info", cfg.Server.LogLevel)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	require.False(t, cfg.Cache.Redis.Enabled)
	require.Equal(t, 24*time.Hour, cfg.Engine.TrendWindow)
	require.Equal(t, 3, cfg.Engine.CompanyMinItems)
	require.Equal(t, 5, cfg.Engine.CategoryMinItems)
	require.Equal(t, 30*24*time.Hour, cfg.Engine.NotificationMaxAge)
	require.Equal(t, "@hourly", cfg.Scheduler.TrendSpec)
	require.Equal(t, 3, cfg.Delivery.MaxAttempts)
	require.Equal(t, time.Minute, cfg.Delivery.Backoff)
	require.False(t, cfg.Telegram.Enabled)
	require.False(t, cfg.Email.SMTP.Enabled)
	require.True(t, cfg.Monitoring.Prometheus.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	contents := `
server:
  log_level: debug
database:
  driver: postgres
  postgres:
    host: db.internal
    port: 5433
    database: insights
    username: hub
    password: secret
engine:
  trend_window: 48h
  company_min_items: 4
telegram:
  enabled: true
  bot_token: tok-123
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(contents), 0o600))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, 48*time.Hour, cfg.Engine.TrendWindow)
	require.Equal(t, 4, cfg.Engine.CompanyMinItems)
	// Unset keys keep their defaults.
	require.Equal(t, 5, cfg.Engine.CategoryMinItems)
	require.True(t, cfg.Telegram.Enabled)
	require.Equal(t, "tok-123", cfg.Telegram.BotToken)

	dbCfg := cfg.Database.DatabaseSettings()
	require.Equal(t, "postgres", dbCfg.Driver)
	require.Equal(t, "db.internal", dbCfg.Host)
	require.Equal(t, 5433, dbCfg.Port)
	require.Equal(t, "hub", dbCfg.User)
	require.Equal(t, "insights", dbCfg.Name)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("INSIGHTHUB_SERVER_LOG_LEVEL", "warn")
	t.Setenv("INSIGHTHUB_TELEGRAM_BOT_TOKEN", "env-token")
	t.Setenv("INSIGHTHUB_ENGINE_CATEGORY_MIN_ITEMS", "7")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, "warn", cfg.Server.LogLevel)
	require.Equal(t, "env-token", cfg.Telegram.BotToken)
	require.Equal(t, 7, cfg.Engine.CategoryMinItems)
}
