package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"reminder_scheduler/internal/infra/config"
	idb "reminder_scheduler/internal/infra/database"
	"reminder_scheduler/internal/infra/httpapi"
	"reminder_scheduler/internal/infra/logger"
	"reminder_scheduler/internal/infra/scheduler"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfg *config.AppConfig

var rootCmd = &cobra.Command{
	Use:           "reminderd",
	Short:         "Recurring reminder scheduler",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("could not load application configuration: %w", err)
		}
		logger.Init(cfg)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run reminder passes on the cron schedule and serve the HTTP API",
	RunE:  runServe,
}

var passCmd = &cobra.Command{
	Use:   "pass",
	Short: "Run a single reminder processing pass and print its result",
	RunE:  runPass,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE:  runMigrate,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, passCmd, migrateCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Component("main")
	log.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"log_level":   cfg.LogLevel,
		"timezone":    cfg.LocationName,
	}).Info("Reminder scheduler starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wired, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer wired.Close()

	sched := scheduler.NewReminderScheduler(
		wired.ReminderService,
		logger.Component("scheduler"),
		cfg.CronSpecReminderProcess,
		cfg.PassTimeout,
		cfg.Location,
	)
	if err := sched.Start(); err != nil {
		return err
	}

	handler := httpapi.NewHandler(wired.ReminderService, wired.AdminService, logger.Component("http")).
		WithPassTimeout(cfg.PassTimeout).
		WithHealthCheck("database", true, wired.DB.PingContext)
	if wired.Redis != nil {
		handler.WithHealthCheck("pass_lock", false, func(ctx context.Context) error {
			return wired.Redis.Ping(ctx).Err()
		})
	}
	if wired.MetricsHandler != nil {
		handler.WithMetrics(cfg.MetricsPath, wired.MetricsHandler)
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("HTTP server failed")
		}
	}

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown did not complete cleanly")
	}
	sched.Stop()
	log.Info("Application shut down gracefully.")
	return nil
}

func runPass(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.PassTimeout)
	defer cancel()

	wired, err := buildDeps(ctx, cfg)
	if err != nil {
		return err
	}
	defer wired.Close()

	res, err := wired.ReminderService.ProcessDuePass(ctx, time.Now())
	enc := json.NewEncoder(cmd.OutOrStdout())
	if err != nil {
		_ = enc.Encode(httpapi.ErrorResponse{Error: "failed to process reminders", Details: err.Error()})
		return err
	}
	return enc.Encode(httpapi.ProcessResponse{
		Success:                   true,
		RemindersProcessed:        res.Processed,
		NotificationsCreated:      res.NotificationsCreated,
		RecurringRemindersCreated: res.SuccessorsCreated,
		Skipped:                   res.Skipped,
	})
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := idb.NewPostgresConnection(ctx, cfg.DatabaseURL, poolSettings(cfg))
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	defer db.Close()

	if err := idb.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Component("migrate").Info("Database schema applied")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "FATAL:", err)
		os.Exit(1)
	}
}
