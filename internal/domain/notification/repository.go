// internal/domain/notification/repository.go
package notification

import "context"

// Sink is where the scheduler emits notifications.
type Sink interface {
	// InsertMany writes a batch. It may fail as a whole.
	InsertMany(ctx context.Context, notifications []*Notification) error
	Insert(ctx context.Context, n *Notification) error
}

// Repository adds the read side used by the notification list.
type Repository interface {
	Sink
	ListByUser(ctx context.Context, userID string, limit int) ([]*Notification, error)
}
