package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"reminder_scheduler/internal/domain/notification"
	"reminder_scheduler/internal/domain/reminder"
)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeClient struct {
	mu    sync.Mutex
	sent  []sentMessage
	err   error
	delay time.Duration
}

func (c *fakeClient) SendMessage(chatID int64, text string, _ *telebot.SendOptions) error {
	time.Sleep(c.delay)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{chatID: chatID, text: text})
	return c.err
}

type fakeSink struct {
	batches [][]*notification.Notification
	singles []*notification.Notification
	err     error
}

func (s *fakeSink) InsertMany(_ context.Context, ns []*notification.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, ns)
	return nil
}

func (s *fakeSink) Insert(_ context.Context, n *notification.Notification) error {
	if s.err != nil {
		return s.err
	}
	s.singles = append(s.singles, n)
	return nil
}

func (c *fakeClient) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func drain(t *testing.T, s *EscalatingSink) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func notificationWithPriority(p reminder.Priority) *notification.Notification {
	r := &reminder.Reminder{
		ID:         uuid.New(),
		AssignedTo: "ops-user",
		Title:      "Rotate certificates",
		Message:    "Expires tomorrow",
		Priority:   p,
	}
	r.ActionURL.String, r.ActionURL.Valid = "https://example.test/certs", true
	return notification.FromReminder(r)
}

func TestEscalatingSink_ForwardsOnlyAtOrAboveThreshold(t *testing.T) {
	next := &fakeSink{}
	client := &fakeClient{}
	sink := NewEscalatingSink(next, client, -100123, reminder.PriorityHigh, quietLogger())

	batch := []*notification.Notification{
		notificationWithPriority(reminder.PriorityLow),
		notificationWithPriority(reminder.PriorityHigh),
		notificationWithPriority(reminder.PriorityUrgent),
	}
	require.NoError(t, sink.InsertMany(context.Background(), batch))
	drain(t, sink)

	require.Len(t, next.batches, 1)
	sent := client.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, int64(-100123), sent[0].chatID)
	assert.Contains(t, sent[0].text, "[HIGH] Rotate certificates")
	assert.Contains(t, sent[0].text, "Action: https://example.test/certs")
	assert.Contains(t, sent[1].text, "[URGENT]")
}

func TestEscalatingSink_NothingSentWhenWriteFails(t *testing.T) {
	boom := errors.New("insert failed")
	client := &fakeClient{}
	sink := NewEscalatingSink(&fakeSink{err: boom}, client, 1, reminder.PriorityLow, quietLogger())

	err := sink.Insert(context.Background(), notificationWithPriority(reminder.PriorityUrgent))
	assert.ErrorIs(t, err, boom)
	drain(t, sink)
	assert.Empty(t, client.messages())
}

func TestEscalatingSink_TelegramErrorIsSwallowed(t *testing.T) {
	next := &fakeSink{}
	client := &fakeClient{err: errors.New("telegram: chat not found (400)")}
	sink := NewEscalatingSink(next, client, 1, reminder.PriorityHigh, quietLogger())

	err := sink.Insert(context.Background(), notificationWithPriority(reminder.PriorityUrgent))
	assert.NoError(t, err)
	drain(t, sink)
	assert.Len(t, next.singles, 1)
	assert.Len(t, client.messages(), 1)
}

func TestNewEscalatingSink_InvalidThresholdDefaultsToHigh(t *testing.T) {
	sink := NewEscalatingSink(&fakeSink{}, &fakeClient{}, 1, "", quietLogger())
	defer drain(t, sink)
	assert.Equal(t, reminder.PriorityHigh, sink.minPriority)
}

func TestEscalatingSink_SlowTelegramDoesNotBlockWrites(t *testing.T) {
	next := &fakeSink{}
	client := &fakeClient{delay: 300 * time.Millisecond}
	sink := NewEscalatingSink(next, client, 1, reminder.PriorityHigh, quietLogger())

	batch := []*notification.Notification{
		notificationWithPriority(reminder.PriorityUrgent),
		notificationWithPriority(reminder.PriorityUrgent),
	}
	started := time.Now()
	require.NoError(t, sink.InsertMany(context.Background(), batch))
	assert.Less(t, time.Since(started), 100*time.Millisecond)
	assert.Empty(t, client.messages(), "sends must not have completed inline")

	drain(t, sink)
	assert.Len(t, client.messages(), 2)
}

func TestEscalatingSink_HungSendIsAbandonedAfterTimeout(t *testing.T) {
	client := &fakeClient{delay: time.Second}
	sink := NewEscalatingSink(&fakeSink{}, client, 1, reminder.PriorityHigh, quietLogger())
	sink.sendTimeout = 20 * time.Millisecond

	require.NoError(t, sink.Insert(context.Background(), notificationWithPriority(reminder.PriorityUrgent)))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	assert.NoError(t, sink.Close(ctx), "worker must move on once the send timeout passes")
}

func TestNewSendOnlyBot_NeedsNoNetwork(t *testing.T) {
	bot, err := NewSendOnlyBot("123456:test-token", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, NewTelebotAdapter(bot))
}
