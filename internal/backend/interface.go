// Package backend assembles the storage and notification adapters chosen
// by configuration.
package backend

import (
	"context"

	"budgetbuddy/internal/mailer/gmail"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the adapters and the function releasing them.
type BackendResult struct {
	Store      store.Store
	Dispatcher notify.Dispatcher
	// Ready reports whether the store is reachable.
	Ready   func(context.Context) error
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	// Notifications. AMQP wins over direct mail when both are set.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	Mail         gmail.Config
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
