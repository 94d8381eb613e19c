// internal/app/reminder_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
	idb "reminder_scheduler/internal/infra/database"
	"reminder_scheduler/internal/infra/metrics"
)

// PassResult summarises one processing pass.
type PassResult struct {
	Processed            int  `json:"reminders_processed"`
	NotificationsCreated int  `json:"notifications_created"`
	SuccessorsCreated    int  `json:"recurring_reminders_created"`
	Skipped              bool `json:"-"` // another instance held the pass lock
}

// PassLock keeps overlapping passes across instances apart. Holding it is an
// optimisation only: claims decide which pass fires a reminder.
type PassLock interface {
	TryAcquire(ctx context.Context) (release func(context.Context) error, ok bool, err error)
}

// ReminderProcessor is what the cron runner and the HTTP trigger depend on.
type ReminderProcessor interface {
	ProcessDuePass(ctx context.Context, now time.Time) (PassResult, error)
}

type ReminderService struct {
	reminders     reminder.Repository
	notifications notification.Sink
	metrics       metrics.Sink
	lock          PassLock // nil disables locking
	logger        *logrus.Entry
	location      *time.Location
	opTimeout     time.Duration
}

type ReminderServiceOption func(*ReminderService)

func WithPassLock(l PassLock) ReminderServiceOption {
	return func(s *ReminderService) { s.lock = l }
}

func WithMetrics(m metrics.Sink) ReminderServiceOption {
	return func(s *ReminderService) { s.metrics = m }
}

func WithLocation(loc *time.Location) ReminderServiceOption {
	return func(s *ReminderService) {
		if loc != nil {
			s.location = loc
		}
	}
}

func WithOpTimeout(d time.Duration) ReminderServiceOption {
	return func(s *ReminderService) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

func NewReminderService(
	reminders reminder.Repository,
	notifications notification.Sink,
	logger *logrus.Entry,
	opts ...ReminderServiceOption,
) *ReminderService {
	s := &ReminderService{
		reminders:     reminders,
		notifications: notifications,
		metrics:       metrics.NewNoopSink(),
		logger:        logger.WithField("service", "reminder"),
		location:      time.UTC,
		opTimeout:     10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// firing is the work staged for one due reminder before it is claimed.
type firing struct {
	reminder     *reminder.Reminder
	notification *notification.Notification
	successor    *reminder.Reminder // nil when the series ends or the reminder is one-off
}

// ProcessDuePass fires every reminder due at now: it claims each one, emits its
// notification and schedules the next occurrence of recurring series.
// Only a failure to list due reminders fails the pass; per-reminder failures are
// logged and leave that reminder to the outcome the claim recorded.
func (s *ReminderService) ProcessDuePass(ctx context.Context, now time.Time) (result PassResult, err error) {
	now = now.In(s.location)
	log := s.logger.WithFields(logrus.Fields{
		"pass_id": uuid.NewString(),
		"now":     now.Format(time.RFC3339),
	})

	if s.lock != nil {
		release, ok, lockErr := s.lock.TryAcquire(ctx)
		switch {
		case lockErr != nil:
			log.WithError(lockErr).Warn("Pass lock unavailable, continuing without it")
		case !ok:
			log.Info("Another instance is processing reminders, skipping pass")
			s.metrics.PassSkipped()
			return PassResult{Skipped: true}, nil
		default:
			defer func() {
				if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
					log.WithError(relErr).Warn("Failed to release pass lock")
				}
			}()
		}
	}

	s.metrics.PassStarted()
	started := time.Now()
	defer func() {
		s.metrics.PassCompleted(time.Since(started), result.Processed, result.NotificationsCreated, result.SuccessorsCreated, err)
	}()

	due, err := s.listDue(ctx, now)
	if err != nil {
		log.WithError(err).Error("Failed to fetch due reminders")
		return PassResult{}, fmt.Errorf("failed to fetch due reminders: %w", err)
	}
	if len(due) == 0 {
		log.Debug("No due reminders")
		return PassResult{}, nil
	}
	log.WithField("due_count", len(due)).Info("Processing due reminders")

	claimed := make([]firing, 0, len(due))
	for _, r := range due {
		f := s.plan(r, log)
		if s.claim(ctx, r, now, log) {
			claimed = append(claimed, f)
		}
	}
	result.Processed = len(claimed)

	result.NotificationsCreated = s.emitNotifications(ctx, claimed, log)
	result.SuccessorsCreated = s.insertSuccessors(ctx, claimed, log)

	log.WithFields(logrus.Fields{
		"reminders_processed":         result.Processed,
		"notifications_created":       result.NotificationsCreated,
		"recurring_reminders_created": result.SuccessorsCreated,
	}).Info("Reminder pass completed")
	return result, nil
}

func (s *ReminderService) listDue(ctx context.Context, now time.Time) ([]*reminder.Reminder, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()
	return s.reminders.ListDue(opCtx, now)
}

func (s *ReminderService) plan(r *reminder.Reminder, log *logrus.Entry) firing {
	f := firing{reminder: r, notification: notification.FromReminder(r)}
	if !r.IsRecurring || r.RecurrencePattern == nil {
		return f
	}

	next, ok, err := reminder.NextOccurrence(r.ReminderDate.In(s.location), *r.RecurrencePattern)
	if err != nil {
		s.metrics.RecurrenceFailed()
		log.WithError(err).WithField("reminder_id", r.ID).Error("Failed to compute next occurrence, series ends here")
		return f
	}
	if !ok {
		log.WithField("reminder_id", r.ID).Info("Recurring series reached its end date")
		return f
	}
	f.successor = r.Successor(next)
	return f
}

func (s *ReminderService) claim(ctx context.Context, r *reminder.Reminder, now time.Time, log *logrus.Entry) bool {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	won, err := s.reminders.ClaimTriggered(opCtx, r.ID, now)
	if err != nil {
		s.metrics.ClaimFailed()
		log.WithError(err).WithField("reminder_id", r.ID).Error("Failed to mark reminder as triggered")
		return false
	}
	if !won {
		s.metrics.ClaimLost()
		log.WithField("reminder_id", r.ID).Debug("Reminder already claimed by another pass")
		return false
	}
	r.Status = reminder.StatusTriggered
	r.TriggeredAt.Time, r.TriggeredAt.Valid = now, true
	return true
}

// emitNotifications writes the batch in one call and falls back to one insert
// per notification when the batch is rejected.
func (s *ReminderService) emitNotifications(ctx context.Context, claimed []firing, log *logrus.Entry) int {
	if len(claimed) == 0 {
		return 0
	}
	batch := make([]*notification.Notification, len(claimed))
	for i, f := range claimed {
		batch[i] = f.notification
	}

	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	err := s.notifications.InsertMany(opCtx, batch)
	cancel()
	if err == nil {
		return len(batch)
	}
	log.WithError(err).WithField("batch_size", len(batch)).Warn("Batch notification insert failed, retrying one by one")

	created := 0
	for _, n := range batch {
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err := s.notifications.Insert(opCtx, n)
		cancel()
		switch {
		case err == nil:
			created++
		case errors.Is(err, idb.ErrDuplicateNotification):
			log.WithField("reminder_id", n.ReminderID.UUID).Info("Notification already emitted for reminder")
		default:
			s.metrics.NotificationFailed()
			log.WithError(err).WithFields(logrus.Fields{
				"reminder_id": n.ReminderID.UUID,
				"user_id":     n.UserID,
			}).Error("Failed to create notification")
		}
	}
	return created
}

func (s *ReminderService) insertSuccessors(ctx context.Context, claimed []firing, log *logrus.Entry) int {
	created := 0
	for _, f := range claimed {
		if f.successor == nil {
			continue
		}
		opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
		err := s.reminders.Insert(opCtx, f.successor)
		cancel()
		switch {
		case err == nil:
			created++
			log.WithFields(logrus.Fields{
				"reminder_id":   f.reminder.ID,
				"successor_id":  f.successor.ID,
				"reminder_date": f.successor.ReminderDate.Format(time.RFC3339),
			}).Debug("Scheduled next occurrence")
		case errors.Is(err, idb.ErrDuplicateSuccessor):
			log.WithField("reminder_id", f.reminder.ID).Info("Next occurrence already scheduled")
		default:
			s.metrics.SuccessorFailed()
			log.WithError(err).WithField("reminder_id", f.reminder.ID).Error("Failed to schedule next occurrence")
		}
	}
	return created
}
