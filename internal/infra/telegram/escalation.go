package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
	domainTelegram "reminder_scheduler/internal/domain/telegram"
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// EscalatingSink writes notifications through to the wrapped sink and, once a
// write has succeeded, queues the ones at or above minPriority for an ops chat.
// Sends happen on a background worker, so a slow Telegram API never holds up
// the caller. A full queue drops the message. Telegram failures are only logged.
type EscalatingSink struct {
	next        notification.Sink
	client      domainTelegram.Client
	chatID      int64
	minPriority reminder.Priority
	logger      *logrus.Entry
	sendTimeout time.Duration

	queue     chan *notification.Notification
	done      chan struct{}
	closeOnce sync.Once
}

func NewEscalatingSink(
	next notification.Sink,
	client domainTelegram.Client,
	chatID int64,
	minPriority reminder.Priority,
	logger *logrus.Entry,
) *EscalatingSink {
	if !minPriority.Valid() {
		minPriority = reminder.PriorityHigh
	}
	s := &EscalatingSink{
		next:        next,
		client:      client,
		chatID:      chatID,
		minPriority: minPriority,
		logger:      logger.WithField("sink", "telegram_escalation"),
		sendTimeout: defaultSendTimeout,
		queue:       make(chan *notification.Notification, defaultQueueSize),
		done:        make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *EscalatingSink) InsertMany(ctx context.Context, notifications []*notification.Notification) error {
	if err := s.next.InsertMany(ctx, notifications); err != nil {
		return err
	}
	for _, n := range notifications {
		s.enqueue(n)
	}
	return nil
}

func (s *EscalatingSink) Insert(ctx context.Context, n *notification.Notification) error {
	if err := s.next.Insert(ctx, n); err != nil {
		return err
	}
	s.enqueue(n)
	return nil
}

// Close stops accepting escalations and waits for queued ones until ctx is done.
func (s *EscalatingSink) Close(ctx context.Context) error {
	s.closeOnce.Do(func() { close(s.queue) })
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram escalation queue not drained: %w", ctx.Err())
	}
}

func (s *EscalatingSink) enqueue(n *notification.Notification) {
	if priorityOf(n).Rank() < s.minPriority.Rank() {
		return
	}
	select {
	case s.queue <- n:
	default:
		s.logger.WithFields(logrus.Fields{
			"notification_id": n.ID,
			"user_id":         n.UserID,
		}).Warn("Telegram escalation queue full, dropping message")
	}
}

func (s *EscalatingSink) run() {
	defer close(s.done)
	for n := range s.queue {
		s.send(n)
	}
}

// send gives up waiting after sendTimeout; SendMessage has no context, so a hung
// request keeps running in its own goroutine until the HTTP client gives up.
func (s *EscalatingSink) send(n *notification.Notification) {
	priority := priorityOf(n)
	log := s.logger.WithFields(logrus.Fields{
		"notification_id": n.ID,
		"user_id":         n.UserID,
		"priority":        priority,
	})

	result := make(chan error, 1)
	go func() {
		result <- s.client.SendMessage(s.chatID, formatEscalation(n, priority), &telebot.SendOptions{
			DisableWebPagePreview: true,
		})
	}()

	select {
	case err := <-result:
		if err != nil {
			log.WithError(err).Warn("Failed to escalate notification to Telegram")
		}
	case <-time.After(s.sendTimeout):
		log.WithField("timeout", s.sendTimeout).Warn("Telegram escalation timed out")
	}
}

func priorityOf(n *notification.Notification) reminder.Priority {
	p, _ := n.Data[notification.KeyPriority].(string)
	return reminder.Priority(p)
}

func formatEscalation(n *notification.Notification, priority reminder.Priority) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s\n", strings.ToUpper(string(priority)), n.Title)
	if n.Message != "" {
		fmt.Fprintf(&b, "%s\n", n.Message)
	}
	fmt.Fprintf(&b, "Assignee: %s", n.UserID)
	if url, ok := n.Data[notification.KeyActionURL].(string); ok && url != "" {
		fmt.Fprintf(&b, "\nAction: %s", url)
	}
	return b.String()
}
