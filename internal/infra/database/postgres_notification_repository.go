// internal/infra/database/postgres_notification_repository.go
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"reminder_scheduler/internal/domain/notification"
)

// Custom errors specific to notification repository
var ErrDuplicateNotification = errors.New("notification for this reminder already exists")

const queryInsertNotification = `INSERT INTO notifications (id, user_id, type, title, message, data, reminder_id)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING created_at`

const queryListNotificationsByUser = `SELECT id, user_id, type, title, message, data, reminder_id, read_at, created_at
FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	data, err := encodePayload(n.Data)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx, queryInsertNotification,
		n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.ReminderID,
	).Scan(&n.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reminder %s", ErrDuplicateNotification, n.ReminderID.UUID)
		}
		return fmt.Errorf("error creating notification: %w", err)
	}
	return nil
}

// InsertMany writes all notifications in one transaction; any failure rolls back the batch.
func (r *PostgresNotificationRepository) InsertMany(ctx context.Context, notifications []*notification.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	txn, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for bulk notification insert: %w", err)
	}
	defer txn.Rollback() // Rollback if not committed

	stmt, err := txn.PrepareContext(ctx, queryInsertNotification)
	if err != nil {
		return fmt.Errorf("failed to prepare statement for bulk notification insert: %w", err)
	}
	defer stmt.Close()

	for _, n := range notifications {
		data, err := encodePayload(n.Data)
		if err != nil {
			return err
		}
		err = stmt.QueryRowContext(ctx, n.ID, n.UserID, n.Type, n.Title, n.Message, data, n.ReminderID).Scan(&n.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("error in bulk notification insert (reminder %s): %w", n.ReminderID.UUID, ErrDuplicateNotification)
			}
			return fmt.Errorf("error executing bulk notification insert (user %s): %w", n.UserID, err)
		}
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("failed to commit bulk notification insert: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx, queryListNotificationsByUser, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying notifications by user: %w", err)
	}
	defer rows.Close()

	notifications := make([]*notification.Notification, 0)
	for rows.Next() {
		var (
			n    notification.Notification
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &data, &n.ReminderID, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification row: %w", err)
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, fmt.Errorf("error decoding data of notification %s: %w", n.ID, err)
			}
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification rows: %w", err)
	}
	return notifications, nil
}

func encodePayload(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("error encoding notification data: %w", err)
	}
	return string(b), nil
}
