package worker

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/log"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

// sliceConsumer hands each message to the handler once, then blocks until
// ctx ends, like a drained queue.
type sliceConsumer struct {
	msgs    []*amqp.NotificationMessage
	results []error
}

func (c *sliceConsumer) ConsumeNotifications(ctx context.Context, handler func(context.Context, *amqp.NotificationMessage) error) error {
	for _, m := range c.msgs {
		c.results = append(c.results, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Output: io.Discard})
}

func TestHandleNotificationSends(t *testing.T) {
	sender := &fakeSender{}
	w := NewNotifyWorker(sender, quietLogger())

	msg := amqp.NewNotificationMessage("budget_alert", "u1", "u1@example.com", "Budget exceeded", "You spent $110.00")
	require.NoError(t, w.HandleNotification(context.Background(), msg))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "u1@example.com", sender.sent[0].to)
	assert.Equal(t, "Budget exceeded", sender.sent[0].subject)
}

func TestHandleNotificationIgnoresRedelivery(t *testing.T) {
	sender := &fakeSender{}
	w := NewNotifyWorker(sender, quietLogger())

	msg := amqp.NewNotificationMessage("reminder", "u1", "u1@example.com", "Reminder: rent", "Pay rent")
	require.NoError(t, w.HandleNotification(context.Background(), msg))
	require.NoError(t, w.HandleNotification(context.Background(), msg))
	assert.Len(t, sender.sent, 1)
}

func TestHandleNotificationDropsInvalidRecipient(t *testing.T) {
	sender := &fakeSender{}
	w := NewNotifyWorker(sender, quietLogger())

	for _, to := range []string{"", "not-an-address"} {
		msg := amqp.NewNotificationMessage("reminder", "u1", to, "s", "b")
		assert.NoError(t, w.HandleNotification(context.Background(), msg), "to %q", to)
	}
	assert.Empty(t, sender.sent)
}

func TestHandleNotificationReturnsSendErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	w := NewNotifyWorker(sender, quietLogger())

	msg := amqp.NewNotificationMessage("reminder", "u1", "u1@example.com", "s", "b")
	err := w.HandleNotification(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")

	// a failed send is not remembered, so the redelivery goes out
	sender.err = nil
	require.NoError(t, w.HandleNotification(context.Background(), msg))
	assert.Len(t, sender.sent, 1)
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	sender := &fakeSender{}
	w := NewNotifyWorker(sender, quietLogger())
	consumer := &sliceConsumer{msgs: []*amqp.NotificationMessage{
		amqp.NewNotificationMessage("reminder", "u1", "a@example.com", "s", "b"),
		amqp.NewNotificationMessage("reminder", "u2", "b@example.com", "s", "b"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer) }()

	require.Eventually(t, func() bool {
		sender.mu.Lock()
		defer sender.mu.Unlock()
		return len(sender.sent) == 2
	}, timeout, tick)
	cancel()
	assert.NoError(t, <-done)
}
