package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"budgetbuddy/internal/amqp"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/mailer/gmail"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/store/memory"
	"budgetbuddy/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentStorage)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	dispatcher, closeDispatcher, err := f.createDispatcher(ctx, config)
	if err != nil {
		_ = res.Cleanup()
		return nil, err
	}
	res.Dispatcher = dispatcher

	closeStore := res.Cleanup
	res.Cleanup = func() error {
		var errs []error
		if closeDispatcher != nil {
			errs = append(errs, closeDispatcher())
		}
		errs = append(errs, closeStore())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	sqliteRepo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Store:   sqliteRepo,
		Ready:   sqliteRepo.Ping,
		Cleanup: sqliteRepo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	st := memory.NewFromFiles(dataDir)

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Store:   st,
		Cleanup: st.Close,
	}, nil
}

// createDispatcher picks how notifications leave the process: through the
// broker when AMQP is configured, straight to Gmail when only a sender is
// configured, otherwise into the log.
func (f *DefaultFactory) createDispatcher(ctx context.Context, config Config) (notify.Dispatcher, CleanupFunc, error) {
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Notifications go through AMQP",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return notify.NewQueueDispatcher(client), client.Close, nil
	}

	if strings.TrimSpace(config.Mail.Sender) != "" {
		mailer, err := gmail.New(ctx, config.Mail)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Gmail client: %w", err)
		}
		f.logger.Info("Notifications are mailed directly", "sender", config.Mail.Sender)
		return notify.MailDispatcher{Sender: mailer}, nil, nil
	}

	f.logger.Warn("No AMQP or Gmail configured, notifications are only logged")
	return notify.LogDispatcher{}, nil, nil
}
