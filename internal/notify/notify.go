// Package notify delivers user-facing notifications. Delivery is best-effort:
// callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/core"
)

// Message kinds.
const (
	KindBudgetAlert = "budget_alert"
	KindReminder    = "reminder"
)

// Message is a rendered email.
type Message struct {
	Kind    string
	OwnerID string
	To      string
	Subject string
	Body    string
}

// Dispatcher sends a message to its recipient.
type Dispatcher interface {
	Dispatch(ctx context.Context, m Message) error
}

// BudgetAlert renders the over-budget email.
func BudgetAlert(ownerID, to string, spent, limit core.Money) Message {
	return Message{
		Kind:    KindBudgetAlert,
		OwnerID: ownerID,
		To:      to,
		Subject: "Budget Exceeded",
		Body: fmt.Sprintf("Budget Alert!\n\nYou've spent $%s and exceeded your set limit of $%s.\n\n"+
			"Please review your expenses on BudgetBuddy.", spent, limit),
	}
}

// ReminderNotice renders a reminder email from its title and message.
func ReminderNotice(to string, r core.Reminder) Message {
	return Message{
		Kind:    KindReminder,
		OwnerID: r.OwnerID,
		To:      to,
		Subject: r.Title,
		Body:    r.Message,
	}
}

// Publisher is the queue side of QueueDispatcher.
type Publisher interface {
	PublishNotification(ctx context.Context, msg *amqp.NotificationMessage) error
}

// QueueDispatcher hands messages to the notify worker through the broker.
type QueueDispatcher struct {
	pub Publisher
}

func NewQueueDispatcher(pub Publisher) *QueueDispatcher {
	return &QueueDispatcher{pub: pub}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("dispatch %s: empty recipient", m.Kind)
	}
	msg := amqp.NewNotificationMessage(m.Kind, m.OwnerID, m.To, m.Subject, m.Body)
	if err := d.pub.PublishNotification(ctx, msg); err != nil {
		return fmt.Errorf("dispatch %s: %w", m.Kind, err)
	}
	return nil
}

// Sender delivers a plain-text email. Implemented by the Gmail client.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailDispatcher sends synchronously, without a broker in between.
type MailDispatcher struct {
	Sender Sender
}

func (d MailDispatcher) Dispatch(ctx context.Context, m Message) error {
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("dispatch %s: empty recipient", m.Kind)
	}
	return d.Sender.Send(ctx, m.To, m.Subject, m.Body)
}

// LogDispatcher only logs messages. Used when no broker is configured.
type LogDispatcher struct{}

func (LogDispatcher) Dispatch(ctx context.Context, m Message) error {
	slog.InfoContext(ctx, "Notification (log only)",
		"component", "notify",
		"kind", m.Kind,
		"owner_id", m.OwnerID,
		"to", m.To,
		"subject", m.Subject)
	return nil
}

// Recorder keeps dispatched messages in memory. Err, when set, is returned
// from every Dispatch and nothing is recorded.
type Recorder struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (r *Recorder) Dispatch(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.sent = append(r.sent, m)
	return nil
}

// Sent returns a copy of the recorded messages.
func (r *Recorder) Sent() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}
