// Package worker runs the background side of the application: delivering
// queued notifications and the scheduled sweeps.
package worker

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/cache"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/notify"
)

// Consumer feeds notification messages to a handler until ctx ends.
type Consumer interface {
	ConsumeNotifications(ctx context.Context, handler func(context.Context, *amqp.NotificationMessage) error) error
}

// NotifyWorker delivers queued notifications through a mail sender.
// Redeliveries of a message it already sent are acknowledged without
// sending again.
type NotifyWorker struct {
	sender    notify.Sender
	delivered *cache.LRUCache[struct{}]
	logger    *log.Logger
}

func NewNotifyWorker(sender notify.Sender, logger *log.Logger) *NotifyWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &NotifyWorker{
		sender:    sender,
		delivered: cache.NewLRUCache[struct{}](10000, 24*time.Hour),
		logger:    logger.WithComponent(log.ComponentNotify),
	}
}

// Run consumes until ctx is cancelled.
func (w *NotifyWorker) Run(ctx context.Context, consumer Consumer) error {
	w.logger.InfoContext(ctx, "Notify worker started")
	err := consumer.ConsumeNotifications(ctx, w.HandleNotification)
	if ctx.Err() != nil {
		w.logger.InfoContext(ctx, "Notify worker stopped")
		return nil
	}
	return err
}

// HandleNotification sends one message. Malformed messages are logged and
// dropped by returning nil; send failures are returned so the broker
// redelivers.
func (w *NotifyWorker) HandleNotification(ctx context.Context, msg *amqp.NotificationMessage) error {
	if _, seen := w.delivered.Get(msg.ID); msg.ID != "" && seen {
		w.logger.InfoContext(ctx, "Skipping already delivered notification", "id", msg.ID, "kind", msg.Kind)
		return nil
	}

	if _, err := mail.ParseAddress(strings.TrimSpace(msg.To)); err != nil {
		w.logger.WarnContext(ctx, "Dropping notification with invalid recipient",
			"id", msg.ID,
			"kind", msg.Kind,
			log.FieldOwnerID, msg.OwnerID,
			log.FieldError, err)
		return nil
	}

	start := time.Now()
	if err := w.sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("send %s notification %s: %w", msg.Kind, msg.ID, err)
	}
	if msg.ID != "" {
		w.delivered.Set(msg.ID, struct{}{})
	}

	w.logger.InfoContext(ctx, "Notification sent",
		"id", msg.ID,
		"kind", msg.Kind,
		log.FieldOwnerID, msg.OwnerID,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}
