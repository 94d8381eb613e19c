package httpapi

import (
	"time"

	"github.com/google/uuid"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
)

type ProcessResponse struct {
	Success                   bool `json:"success"`
	RemindersProcessed        int  `json:"reminders_processed"`
	NotificationsCreated      int  `json:"notifications_created"`
	RecurringRemindersCreated int  `json:"recurring_reminders_created"`
	Skipped                   bool `json:"skipped,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

type ReminderResponse struct {
	ID                uuid.UUID                   `json:"id"`
	CreatedBy         string                      `json:"created_by"`
	AssignedTo        string                      `json:"assigned_to"`
	Title             string                      `json:"title"`
	Message           string                      `json:"message,omitempty"`
	ReminderDate      time.Time                   `json:"reminder_date"`
	IsRecurring       bool                        `json:"is_recurring"`
	RecurrencePattern *reminder.RecurrencePattern `json:"recurrence_pattern,omitempty"`
	Status            reminder.Status             `json:"status"`
	Priority          reminder.Priority           `json:"priority"`
	ActionRequired    bool                        `json:"action_required"`
	ActionURL         *string                     `json:"action_url,omitempty"`
	Data              map[string]any              `json:"data,omitempty"`
	ParentID          *uuid.UUID                  `json:"parent_id,omitempty"`
	TriggeredAt       *time.Time                  `json:"triggered_at,omitempty"`
	CreatedAt         time.Time                   `json:"created_at"`
}

type NotificationResponse struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"user_id"`
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Message    string         `json:"message,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	ReminderID *uuid.UUID     `json:"reminder_id,omitempty"`
	ReadAt     *time.Time     `json:"read_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func toReminderResponse(r *reminder.Reminder) ReminderResponse {
	resp := ReminderResponse{
		ID:                r.ID,
		CreatedBy:         r.CreatedBy,
		AssignedTo:        r.AssignedTo,
		Title:             r.Title,
		Message:           r.Message,
		ReminderDate:      r.ReminderDate,
		IsRecurring:       r.IsRecurring,
		RecurrencePattern: r.RecurrencePattern,
		Status:            r.Status,
		Priority:          r.Priority,
		ActionRequired:    r.ActionRequired,
		Data:              r.Data,
		CreatedAt:         r.CreatedAt,
	}
	if r.ActionURL.Valid {
		resp.ActionURL = &r.ActionURL.String
	}
	if r.ParentID.Valid {
		resp.ParentID = &r.ParentID.UUID
	}
	if r.TriggeredAt.Valid {
		resp.TriggeredAt = &r.TriggeredAt.Time
	}
	return resp
}

func toNotificationResponse(n *notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		CreatedAt: n.CreatedAt,
	}
	if n.ReminderID.Valid {
		resp.ReminderID = &n.ReminderID.UUID
	}
	if n.ReadAt.Valid {
		resp.ReadAt = &n.ReadAt.Time
	}
	return resp
}
