package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"reminder_scheduler/internal/app"
	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
	"reminder_scheduler/internal/infra/config"
	idb "reminder_scheduler/internal/infra/database"
	"reminder_scheduler/internal/infra/lock"
	"reminder_scheduler/internal/infra/logger"
	"reminder_scheduler/internal/infra/metrics"
	"reminder_scheduler/internal/infra/telegram"
)

const telegramRequestTimeout = 10 * time.Second

type deps struct {
	DB              *sql.DB
	Redis           *redis.Client // nil when the pass lock is disabled
	ReminderService *app.ReminderService
	AdminService    *app.AdminService
	MetricsHandler  http.Handler // nil when metrics are disabled

	closers []func() error
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			logger.Component("main").WithError(err).Warn("Error while releasing resources")
		}
	}
}

func poolSettings(cfg *config.AppConfig) idb.PoolSettings {
	return idb.PoolSettings{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}

// buildDeps wires repositories, optional integrations and services from cfg.
func buildDeps(ctx context.Context, cfg *config.AppConfig) (*deps, error) {
	log := logger.Component("main")
	d := &deps{}

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL, poolSettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	d.DB = db
	d.closers = append(d.closers, db.Close)
	log.Info("Database connection established successfully.")

	reminderRepo := idb.NewPostgresReminderRepository(db)
	notificationRepo := idb.NewPostgresNotificationRepository(db)

	var sink notification.Sink = notificationRepo
	if cfg.TelegramToken != "" {
		bot, err := telegram.NewSendOnlyBot(cfg.TelegramToken, telegramRequestTimeout)
		if err != nil {
			log.WithError(err).Warn("Telegram escalation disabled: could not create bot")
		} else {
			escalation := telegram.NewEscalatingSink(
				notificationRepo,
				telegram.NewTelebotAdapter(bot),
				cfg.TelegramEscalationChatID,
				reminder.Priority(cfg.TelegramEscalationMinPriority),
				logger.Component("telegram"),
			)
			d.closers = append(d.closers, func() error {
				ctx, cancel := context.WithTimeout(context.Background(), telegramRequestTimeout)
				defer cancel()
				return escalation.Close(ctx)
			})
			sink = escalation
			log.WithField("min_priority", cfg.TelegramEscalationMinPriority).Info("Telegram escalation enabled.")
		}
	}

	opts := []app.ReminderServiceOption{
		app.WithLocation(cfg.Location),
		app.WithOpTimeout(cfg.DBOpTimeout),
	}

	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, app.WithMetrics(metrics.NewPrometheusSink(reg, logger.Component("metrics"))))
		d.MetricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
		log.WithField("path", cfg.MetricsPath).Info("Prometheus metrics enabled.")
	}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		d.Redis = client
		d.closers = append(d.closers, client.Close)
		opts = append(opts, app.WithPassLock(lock.NewRedisLock(client, lock.DefaultKey, cfg.PassLockTTL)))
		log.WithField("redis_addr", cfg.RedisAddr).Info("Redis pass lock enabled.")
	}

	d.ReminderService = app.NewReminderService(reminderRepo, sink, logger.Component("reminder_pass"), opts...)
	d.AdminService = app.NewAdminService(reminderRepo, notificationRepo)
	return d, nil
}
