package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
	idb "reminder_scheduler/internal/infra/database"
)

// memoryStore mimics the Postgres repositories, including the claim guard and
// the unique indexes on parent_id and reminder_id.
type memoryStore struct {
	mu            sync.Mutex
	reminders     map[uuid.UUID]*reminder.Reminder
	notifications []*notification.Notification

	listErr        error
	claimErr       map[uuid.UUID]error
	insertErr      error
	batchErr       error
	notifyErr      map[uuid.UUID]error // keyed by reminder id, for single inserts
	listedSnapshot chan struct{}       // closed by the test to release ListDue callers
}

func newMemoryStore(rs ...*reminder.Reminder) *memoryStore {
	s := &memoryStore{
		reminders: make(map[uuid.UUID]*reminder.Reminder),
		claimErr:  make(map[uuid.UUID]error),
		notifyErr: make(map[uuid.UUID]error),
	}
	for _, r := range rs {
		s.reminders[r.ID] = r
	}
	return s
}

func (s *memoryStore) ListDue(_ context.Context, now time.Time) ([]*reminder.Reminder, error) {
	s.mu.Lock()
	if s.listErr != nil {
		s.mu.Unlock()
		return nil, s.listErr
	}
	var due []*reminder.Reminder
	for _, r := range s.reminders {
		if r.IsDue(now) {
			cp := *r
			due = append(due, &cp)
		}
	}
	gate := s.listedSnapshot
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return due, nil
}

func (s *memoryStore) ClaimTriggered(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.claimErr[id]; err != nil {
		return false, err
	}
	r, ok := s.reminders[id]
	if !ok || r.Status != reminder.StatusScheduled || r.DeletedAt.Valid {
		return false, nil
	}
	r.Status = reminder.StatusTriggered
	r.TriggeredAt.Time, r.TriggeredAt.Valid = at, true
	return true, nil
}

func (s *memoryStore) Insert(ctx context.Context, r *reminder.Reminder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	if r.ParentID.Valid {
		for _, existing := range s.reminders {
			if existing.ParentID == r.ParentID {
				return idb.ErrDuplicateSuccessor
			}
		}
	}
	cp := *r
	s.reminders[r.ID] = &cp
	return nil
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*reminder.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[id]
	if !ok {
		return nil, idb.ErrReminderNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memoryStore) InsertMany(_ context.Context, ns []*notification.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchErr != nil {
		return s.batchErr
	}
	for _, n := range ns {
		if s.hasNotificationFor(n.ReminderID) {
			return idb.ErrDuplicateNotification
		}
	}
	s.notifications = append(s.notifications, ns...)
	return nil
}

func (s *memoryStore) insertNotificationLocked(n *notification.Notification) error {
	if err := s.notifyErr[n.ReminderID.UUID]; err != nil {
		return err
	}
	if s.hasNotificationFor(n.ReminderID) {
		return idb.ErrDuplicateNotification
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memoryStore) hasNotificationFor(id uuid.NullUUID) bool {
	for _, existing := range s.notifications {
		if existing.ReminderID == id {
			return true
		}
	}
	return false
}

func (s *memoryStore) ListByUser(_ context.Context, userID string, limit int) ([]*notification.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*notification.Notification
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *memoryStore) notificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notifications)
}

func (s *memoryStore) successorsOf(id uuid.UUID) []*reminder.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*reminder.Reminder
	for _, r := range s.reminders {
		if r.ParentID.Valid && r.ParentID.UUID == id {
			out = append(out, r)
		}
	}
	return out
}

func (s *memoryStore) get(id uuid.UUID) *reminder.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.reminders[id]
	return &cp
}

// notificationSink exposes memoryStore as a notification.Sink; Insert on the
// store itself belongs to the reminder side.
type notificationSink struct{ *memoryStore }

func (n notificationSink) Insert(_ context.Context, item *notification.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.insertNotificationLocked(item)
}

type fakeLock struct {
	held     bool
	err      error
	released int
}

func (l *fakeLock) TryAcquire(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func(context.Context) error {
		l.held = false
		l.released++
		return nil
	}, true, nil
}

var errStoreDown = errors.New("connection refused")

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
