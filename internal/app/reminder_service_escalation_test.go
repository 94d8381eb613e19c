package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"reminder_scheduler/internal/domain/reminder"
	"reminder_scheduler/internal/infra/telegram"
)

type hangingTelegram struct{ delay time.Duration }

func (c hangingTelegram) SendMessage(int64, string, *telebot.SendOptions) error {
	time.Sleep(c.delay)
	return nil
}

func TestProcessDuePass_SlowEscalationKeepsSeriesAlive(t *testing.T) {
	standup := weeklyStandup()
	standup.Priority = reminder.PriorityUrgent
	store := newMemoryStore(standup)

	sink := telegram.NewEscalatingSink(notificationSink{store}, hangingTelegram{delay: 300 * time.Millisecond},
		-100123, reminder.PriorityHigh, quietLogger())
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sink.Close(ctx)
	}()
	svc := NewReminderService(store, sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	res, err := svc.ProcessDuePass(ctx, passTime)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Processed: 1, NotificationsCreated: 1, SuccessorsCreated: 1}, res)
	assert.Len(t, store.successorsOf(standup.ID), 1)
}
