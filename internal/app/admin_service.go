package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
	idb "reminder_scheduler/internal/infra/database"
)

// Custom application-level errors for admin service
var ErrInvalidReminder = errors.New("invalid reminder")
var ErrReminderNotFound = errors.New("reminder not found")

const maxNotificationsPage = 100

// NewReminderInput is what a caller supplies to schedule a reminder.
type NewReminderInput struct {
	CreatedBy         string                      `json:"created_by"`
	AssignedTo        string                      `json:"assigned_to"`
	Title             string                      `json:"title"`
	Message           string                      `json:"message"`
	ReminderDate      time.Time                   `json:"reminder_date"`
	IsRecurring       bool                        `json:"is_recurring"`
	RecurrencePattern *reminder.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	Priority          reminder.Priority           `json:"priority"`
	ActionRequired    bool                        `json:"action_required"`
	ActionURL         string                      `json:"action_url,omitempty"`
	Data              map[string]any              `json:"data,omitempty"`
}

// AdminService covers the write and read paths around the scheduler:
// scheduling reminders and listing what users were notified about.
type AdminService struct {
	reminders     reminder.Repository
	notifications notification.Repository
}

func NewAdminService(rr reminder.Repository, nr notification.Repository) *AdminService {
	return &AdminService{reminders: rr, notifications: nr}
}

// CreateReminder validates in and stores it as a scheduled reminder.
func (s *AdminService) CreateReminder(ctx context.Context, in NewReminderInput) (*reminder.Reminder, error) {
	if err := validateNewReminder(&in); err != nil {
		return nil, err
	}

	r := &reminder.Reminder{
		ID:                uuid.New(),
		CreatedBy:         strings.TrimSpace(in.CreatedBy),
		AssignedTo:        strings.TrimSpace(in.AssignedTo),
		Title:             strings.TrimSpace(in.Title),
		Message:           in.Message,
		ReminderDate:      in.ReminderDate,
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: in.RecurrencePattern,
		Status:            reminder.StatusScheduled,
		Priority:          in.Priority,
		ActionRequired:    in.ActionRequired,
		ActionURL:         sql.NullString{String: in.ActionURL, Valid: in.ActionURL != ""},
		Data:              in.Data,
	}
	if err := s.reminders.Insert(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create reminder in repository: %w", err)
	}
	return r, nil
}

func (s *AdminService) GetReminder(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	r, err := s.reminders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, idb.ErrReminderNotFound) {
			return nil, ErrReminderNotFound
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// ListNotifications returns a user's newest notifications first. limit is clamped to 1..100.
func (s *AdminService) ListNotifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidReminder)
	}
	if limit <= 0 || limit > maxNotificationsPage {
		limit = maxNotificationsPage
	}
	ns, err := s.notifications.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return ns, nil
}

func validateNewReminder(in *NewReminderInput) error {
	switch {
	case strings.TrimSpace(in.CreatedBy) == "":
		return fmt.Errorf("%w: created_by is required", ErrInvalidReminder)
	case strings.TrimSpace(in.AssignedTo) == "":
		return fmt.Errorf("%w: assigned_to is required", ErrInvalidReminder)
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidReminder)
	case in.ReminderDate.IsZero():
		return fmt.Errorf("%w: reminder_date is required", ErrInvalidReminder)
	}

	if in.Priority == "" {
		in.Priority = reminder.PriorityMedium
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidReminder, in.Priority)
	}

	if !in.IsRecurring {
		// A pattern on a one-off reminder is ignored by the scheduler; do not store it.
		in.RecurrencePattern = nil
		return nil
	}
	if in.RecurrencePattern == nil {
		return fmt.Errorf("%w: recurring reminder needs a recurrence_pattern", ErrInvalidReminder)
	}
	if in.RecurrencePattern.Interval == 0 {
		in.RecurrencePattern.Interval = 1
	}
	if err := in.RecurrencePattern.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidReminder, err)
	}
	if end := in.RecurrencePattern.EndDate; end != nil && end.Before(in.ReminderDate) {
		return fmt.Errorf("%w: endDate is before reminder_date", ErrInvalidReminder)
	}
	return nil
}
