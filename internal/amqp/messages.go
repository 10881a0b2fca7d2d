package amqp

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// NotificationMessage is one email waiting to be delivered by the notify
// worker. It carries the full rendered content so the worker needs no store
// access.
type NotificationMessage struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	OwnerID   string    `json:"owner_id,omitempty"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(kind, ownerID, to, subject, body string) *NotificationMessage {
	return &NotificationMessage{
		ID:        uuid.NewString(),
		Kind:      kind,
		OwnerID:   ownerID,
		To:        to,
		Subject:   subject,
		Body:      body,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
