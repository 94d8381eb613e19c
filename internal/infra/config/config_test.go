package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key Load reads so a developer's .env or shell does not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "HTTP_ADDR", "LOG_LEVEL", "ENVIRONMENT", "CRON_SPEC_REMINDER_PROCESS",
		"PASS_TIMEOUT", "DB_OP_TIMEOUT", "REMINDER_TIMEZONE", "DB_MAX_OPEN_CONNS",
		"DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME", "REDIS_ADDR", "PASS_LOCK_TTL",
		"METRICS_ENABLED", "METRICS_PATH", "TELEGRAM_TOKEN", "TELEGRAM_ESCALATION_CHAT_ID",
		"TELEGRAM_ESCALATION_MIN_PRIORITY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/reminders")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "*/15 * * * *", cfg.CronSpecReminderProcess)
	assert.Equal(t, 5*time.Minute, cfg.PassTimeout)
	assert.Equal(t, 10*time.Second, cfg.DBOpTimeout)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 25, cfg.DBMaxOpenConns)
	assert.Equal(t, 10*time.Minute, cfg.PassLockTTL)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, "/metrics", cfg.MetricsPath)
	assert.Empty(t, cfg.TelegramToken)
	assert.Equal(t, "high", cfg.TelegramEscalationMinPriority)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/reminders")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("ENVIRONMENT", "Production")
	t.Setenv("PASS_TIMEOUT", "2m")
	t.Setenv("DB_OP_TIMEOUT", "3s")
	t.Setenv("REMINDER_TIMEZONE", "Europe/Berlin")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_ESCALATION_CHAT_ID", "-100200300")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, 2*time.Minute, cfg.PassTimeout)
	assert.Equal(t, 3*time.Second, cfg.DBOpTimeout)
	assert.Equal(t, "Europe/Berlin", cfg.Location.String())
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, int64(-100200300), cfg.TelegramEscalationChatID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing database url", map[string]string{}},
		{"bad pass timeout", map[string]string{"DATABASE_URL": "x", "PASS_TIMEOUT": "soon"}},
		{"negative db timeout", map[string]string{"DATABASE_URL": "x", "DB_OP_TIMEOUT": "-1s"}},
		{"pass timeout below db timeout", map[string]string{"DATABASE_URL": "x", "PASS_TIMEOUT": "5s", "DB_OP_TIMEOUT": "10s"}},
		{"unknown timezone", map[string]string{"DATABASE_URL": "x", "REMINDER_TIMEZONE": "Mars/Olympus"}},
		{"bad pool size", map[string]string{"DATABASE_URL": "x", "DB_MAX_OPEN_CONNS": "zero"}},
		{"telegram without chat", map[string]string{"DATABASE_URL": "x", "TELEGRAM_TOKEN": "t"}},
		{"telegram bad chat", map[string]string{"DATABASE_URL": "x", "TELEGRAM_TOKEN": "t", "TELEGRAM_ESCALATION_CHAT_ID": "ops"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
