// internal/domain/notification/notification.go
package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"reminder_scheduler/internal/domain/reminder"
)

// TypeReminder marks notifications produced by firing a reminder.
const TypeReminder = "reminder"

// Keys written by the scheduler into Notification.Data. They always win over
// keys of the same name in the reminder's own data.
const (
	KeyReminderID     = "reminder_id"
	KeyPriority       = "priority"
	KeyActionRequired = "action_required"
	KeyActionURL      = "action_url"
	// KeyShadowed holds reminder data values displaced by the fixed keys above.
	KeyShadowed = "shadowed"
)

// Notification is a message shown to a user in the notification list.
// Corresponds to the 'notifications' table.
type Notification struct {
	ID         uuid.UUID
	UserID     string
	Type       string
	Title      string
	Message    string
	Data       map[string]any
	ReminderID uuid.NullUUID // set for TypeReminder; unique per reminder occurrence
	ReadAt     sql.NullTime
	CreatedAt  time.Time
}

// FromReminder builds the notification emitted when r fires.
func FromReminder(r *reminder.Reminder) *Notification {
	return &Notification{
		ID:         uuid.New(),
		UserID:     r.AssignedTo,
		Type:       TypeReminder,
		Title:      r.Title,
		Message:    r.Message,
		Data:       reminderPayload(r),
		ReminderID: uuid.NullUUID{UUID: r.ID, Valid: true},
	}
}

func reminderPayload(r *reminder.Reminder) map[string]any {
	var actionURL any
	if r.ActionURL.Valid {
		actionURL = r.ActionURL.String
	}
	fixed := map[string]any{
		KeyReminderID:     r.ID.String(),
		KeyPriority:       string(r.Priority),
		KeyActionRequired: r.ActionRequired,
		KeyActionURL:      actionURL,
	}

	payload := make(map[string]any, len(r.Data)+len(fixed))
	shadowed := make(map[string]any)
	for k, v := range r.Data {
		if _, taken := fixed[k]; taken || k == KeyShadowed {
			shadowed[k] = v
			continue
		}
		payload[k] = v
	}
	for k, v := range fixed {
		payload[k] = v
	}
	if len(shadowed) > 0 {
		payload[KeyShadowed] = shadowed
	}
	return payload
}
