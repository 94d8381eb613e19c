// internal/infra/database/postgres_reminder_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"reminder_scheduler/internal/domain/reminder"
)

// Custom errors specific to reminder repository
var ErrReminderNotFound = errors.New("reminder not found")
var ErrDuplicateSuccessor = errors.New("successor reminder already exists for parent")

const reminderColumns = `id, created_by, assigned_to, title, message, reminder_date, is_recurring,
       recurrence_pattern, status, priority, action_required, action_url, data, parent_id,
       triggered_at, completed_at, acknowledged_at, deleted_at, created_at, updated_at`

const queryListDueReminders = `SELECT ` + reminderColumns + `
FROM reminders
WHERE status = 'scheduled'
  AND reminder_date <= $1
  AND deleted_at IS NULL
ORDER BY reminder_date ASC`

const queryGetReminderByID = `SELECT ` + reminderColumns + ` FROM reminders WHERE id = $1`

// The status guard in WHERE makes the transition a claim: Postgres takes the row
// lock before evaluating it, so only one concurrent UPDATE sees 'scheduled'.
const queryClaimReminder = `UPDATE reminders
SET status = 'triggered', triggered_at = $2, updated_at = NOW()
WHERE id = $1
  AND status = 'scheduled'
  AND deleted_at IS NULL`

const queryInsertReminder = `INSERT INTO reminders (id, created_by, assigned_to, title, message, reminder_date,
       is_recurring, recurrence_pattern, status, priority, action_required, action_url, data, parent_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING created_at, updated_at`

type PostgresReminderRepository struct {
	db *sql.DB
}

func NewPostgresReminderRepository(db *sql.DB) *PostgresReminderRepository {
	return &PostgresReminderRepository{db: db}
}

func (r *PostgresReminderRepository) ListDue(ctx context.Context, now time.Time) ([]*reminder.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, queryListDueReminders, now)
	if err != nil {
		return nil, fmt.Errorf("error querying due reminders: %w", err)
	}
	defer rows.Close()

	reminders := make([]*reminder.Reminder, 0)
	for rows.Next() {
		rem, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, rem)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due reminder rows: %w", err)
	}
	return reminders, nil
}

func (r *PostgresReminderRepository) ClaimTriggered(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, queryClaimReminder, id, at)
	if err != nil {
		return false, fmt.Errorf("error claiming reminder %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading claim result for reminder %s: %w", id, err)
	}
	return affected == 1, nil
}

func (r *PostgresReminderRepository) Insert(ctx context.Context, rem *reminder.Reminder) error {
	pattern, err := marshalNullableJSON(rem.RecurrencePattern)
	if err != nil {
		return fmt.Errorf("error encoding recurrence pattern: %w", err)
	}
	data, err := marshalData(rem.Data)
	if err != nil {
		return fmt.Errorf("error encoding reminder data: %w", err)
	}

	err = r.db.QueryRowContext(ctx, queryInsertReminder,
		rem.ID,
		rem.CreatedBy,
		rem.AssignedTo,
		rem.Title,
		rem.Message,
		rem.ReminderDate,
		rem.IsRecurring,
		pattern,
		string(rem.Status),
		string(rem.Priority),
		rem.ActionRequired,
		rem.ActionURL,
		data,
		rem.ParentID,
	).Scan(&rem.CreatedAt, &rem.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) && rem.ParentID.Valid {
			return fmt.Errorf("%w: parent %s", ErrDuplicateSuccessor, rem.ParentID.UUID)
		}
		return fmt.Errorf("error creating reminder: %w", err)
	}
	return nil
}

func (r *PostgresReminderRepository) GetByID(ctx context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	rem, err := scanReminder(r.db.QueryRowContext(ctx, queryGetReminderByID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReminderNotFound
		}
		return nil, err
	}
	return rem, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*reminder.Reminder, error) {
	var (
		rem      reminder.Reminder
		pattern  []byte
		data     []byte
		status   string
		priority string
	)
	err := row.Scan(
		&rem.ID, &rem.CreatedBy, &rem.AssignedTo, &rem.Title, &rem.Message,
		&rem.ReminderDate, &rem.IsRecurring, &pattern, &status, &priority,
		&rem.ActionRequired, &rem.ActionURL, &data, &rem.ParentID,
		&rem.TriggeredAt, &rem.CompletedAt, &rem.AcknowledgedAt, &rem.DeletedAt,
		&rem.CreatedAt, &rem.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("error scanning reminder row: %w", err)
	}
	rem.Status = reminder.Status(status)
	rem.Priority = reminder.Priority(priority)

	if len(pattern) > 0 {
		var p reminder.RecurrencePattern
		if err := json.Unmarshal(pattern, &p); err != nil {
			return nil, fmt.Errorf("error decoding recurrence pattern of reminder %s: %w", rem.ID, err)
		}
		rem.RecurrencePattern = &p
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &rem.Data); err != nil {
			return nil, fmt.Errorf("error decoding data of reminder %s: %w", rem.ID, err)
		}
	}
	return &rem, nil
}

// marshalNullableJSON encodes p as JSON text, mapping nil to SQL NULL.
// lib/pq sends []byte as bytea, so JSONB parameters go over the wire as strings.
func marshalNullableJSON(p *reminder.RecurrencePattern) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func marshalData(data map[string]any) (any, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
