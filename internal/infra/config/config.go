package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Environment string

	CronSpecReminderProcess string        // How often a processing pass runs
	PassTimeout             time.Duration // Upper bound for one whole pass
	DBOpTimeout             time.Duration // Upper bound for each store / sink call
	Location                *time.Location
	LocationName            string

	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	RedisAddr   string // Empty disables the cross-instance pass lock
	PassLockTTL time.Duration

	MetricsEnabled bool
	MetricsPath    string

	TelegramToken                 string // Empty disables escalation to Telegram
	TelegramEscalationChatID      int64
	TelegramEscalationMinPriority string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing file is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))
	cfg.CronSpecReminderProcess = envOr("CRON_SPEC_REMINDER_PROCESS", "*/15 * * * *") // every 15 minutes

	if cfg.PassTimeout, err = durationEnv("PASS_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.DBOpTimeout, err = durationEnv("DB_OP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.LocationName = envOr("REMINDER_TIMEZONE", "UTC")
	cfg.Location, err = time.LoadLocation(cfg.LocationName)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIMEZONE: %w", err)
	}

	if cfg.DBMaxOpenConns, err = intEnv("DB_MAX_OPEN_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBMaxIdleConns, err = intEnv("DB_MAX_IDLE_CONNS", 25); err != nil {
		return nil, err
	}
	if cfg.DBConnMaxLifetime, err = durationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	if cfg.PassLockTTL, err = durationEnv("PASS_LOCK_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	cfg.MetricsEnabled = os.Getenv("METRICS_ENABLED") == "true"
	cfg.MetricsPath = envOr("METRICS_PATH", "/metrics")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken != "" {
		chatIDStr := os.Getenv("TELEGRAM_ESCALATION_CHAT_ID")
		if chatIDStr == "" {
			return nil, fmt.Errorf("TELEGRAM_ESCALATION_CHAT_ID is required when TELEGRAM_TOKEN is set")
		}
		cfg.TelegramEscalationChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ESCALATION_CHAT_ID: %w", err)
		}
	}
	cfg.TelegramEscalationMinPriority = strings.ToLower(envOr("TELEGRAM_ESCALATION_MIN_PRIORITY", "high"))

	if cfg.PassTimeout <= cfg.DBOpTimeout {
		return nil, fmt.Errorf("PASS_TIMEOUT (%s) must exceed DB_OP_TIMEOUT (%s)", cfg.PassTimeout, cfg.DBOpTimeout)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %d", key, n)
	}
	return n, nil
}
