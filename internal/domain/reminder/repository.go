package reminder

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the storage operations the scheduler needs for reminders.
type Repository interface {
	// ListDue returns reminders with status scheduled, reminder_date <= now and not soft-deleted.
	ListDue(ctx context.Context, now time.Time) ([]*Reminder, error)
	// ClaimTriggered moves a reminder from scheduled to triggered, stamping triggered_at.
	// It reports false when another writer already moved the reminder out of scheduled.
	ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// Insert persists a new reminder row, filling CreatedAt and UpdatedAt.
	Insert(ctx context.Context, r *Reminder) error
	GetByID(ctx context.Context, id uuid.UUID) (*Reminder, error)
}
