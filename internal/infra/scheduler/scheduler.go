package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"reminder_scheduler/internal/app"
)

type ReminderScheduler struct {
	cronEngine  *cron.Cron
	processor   app.ReminderProcessor
	logger      *logrus.Entry
	cronSpec    string
	passTimeout time.Duration
	now         func() time.Time
}

func NewReminderScheduler(
	processor app.ReminderProcessor,
	logger *logrus.Entry,
	cronSpec string, // e.g., "*/15 * * * *" (every 15 minutes)
	passTimeout time.Duration,
	location *time.Location,
) *ReminderScheduler {
	if location == nil {
		location = time.UTC
	}
	return &ReminderScheduler{
		cronEngine: cron.New(
			cron.WithLocation(location),
			// A pass still running when the next tick fires makes that tick a no-op.
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		processor:   processor,
		logger:      logger.WithField("component", "scheduler"),
		cronSpec:    cronSpec,
		passTimeout: passTimeout,
		now:         time.Now,
	}
}

func (s *ReminderScheduler) Start() error {
	s.logger.Info("Starting reminder scheduler...")

	_, err := s.cronEngine.AddFunc(s.cronSpec, func() {
		s.logger.Debug("Cron job triggered for reminder processing.")
		s.runPass()
	})
	if err != nil {
		return fmt.Errorf("could not add reminder processing cron job %q: %w", s.cronSpec, err)
	}

	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Reminder scheduler started.")
	return nil
}

func (s *ReminderScheduler) runPass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.passTimeout)
	defer cancel()

	if _, err := s.processor.ProcessDuePass(ctx, s.now()); err != nil {
		s.logger.WithError(err).Error("Error during reminder processing pass")
	}
}

func (s *ReminderScheduler) Stop() {
	s.logger.Info("Stopping reminder scheduler...")
	ctx := s.cronEngine.Stop() // Stops the scheduler from adding new jobs, waits for running jobs.
	<-ctx.Done()               // Wait for graceful shutdown
	s.logger.Info("Reminder scheduler gracefully stopped.")
}

// cronLogger routes robfig/cron's internal logging to logrus.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(toFields(keysAndValues)).WithError(err).Error(msg)
}

func toFields(keysAndValues []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
