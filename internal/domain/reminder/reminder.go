// internal/domain/reminder/reminder.go
package reminder

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a single reminder occurrence.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusTriggered Status = "triggered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Priority is carried through to the notification payload; the scheduler never interprets it.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities from low (1) to urgent (4). Unknown values rank 0.
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Reminder is one occurrence of a (possibly recurring) scheduled notification intent.
// Corresponds to the 'reminders' table.
type Reminder struct {
	ID         uuid.UUID
	CreatedBy  string
	AssignedTo string // recipient of the notification

	Title   string
	Message string

	ReminderDate      time.Time
	IsRecurring       bool
	RecurrencePattern *RecurrencePattern // present iff IsRecurring

	Status         Status
	Priority       Priority
	ActionRequired bool
	ActionURL      sql.NullString
	Data           map[string]any

	// ParentID is the reminder whose firing spawned this row, if any.
	ParentID uuid.NullUUID

	TriggeredAt    sql.NullTime
	CompletedAt    sql.NullTime
	AcknowledgedAt sql.NullTime
	DeletedAt      sql.NullTime

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsDue reports whether the reminder should fire in a pass running at now.
func (r *Reminder) IsDue(now time.Time) bool {
	return r.Status == StatusScheduled && !r.DeletedAt.Valid && !r.ReminderDate.After(now)
}

// Successor builds the next occurrence of a recurring series. The new row starts
// scheduled at next and points back to r through ParentID.
func (r *Reminder) Successor(next time.Time) *Reminder {
	var pattern *RecurrencePattern
	if r.RecurrencePattern != nil {
		p := r.RecurrencePattern.clone()
		pattern = &p
	}
	return &Reminder{
		ID:                uuid.New(),
		CreatedBy:         r.CreatedBy,
		AssignedTo:        r.AssignedTo,
		Title:             r.Title,
		Message:           r.Message,
		ReminderDate:      next,
		IsRecurring:       true,
		RecurrencePattern: pattern,
		Status:            StatusScheduled,
		Priority:          r.Priority,
		ActionRequired:    r.ActionRequired,
		ActionURL:         r.ActionURL,
		Data:              cloneData(r.Data),
		ParentID:          uuid.NullUUID{UUID: r.ID, Valid: true},
	}
}

func cloneData(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
