package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nivanenko/shared-expenses-tracker/internal/amqp"
	"github.com/nivanenko/shared-expenses-tracker/internal/config"
	"github.com/nivanenko/shared-expenses-tracker/internal/ledger"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
	"github.com/nivanenko/shared-expenses-tracker/internal/services"
	"github.com/nivanenko/shared-expenses-tracker/internal/storage"
	"github.com/nivanenko/shared-expenses-tracker/internal/storage/memory"
	"github.com/nivanenko/shared-expenses-tracker/internal/storage/postgres"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:         backendType,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		DatabaseURL:  appConfig.DatabaseURL,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
	}, nil
}

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
	opts   []services.Option
}

// NewFactory creates a new backend factory. The options are passed on to
// every LedgerService it builds.
func NewFactory(logger *slog.Logger, opts ...services.Option) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
		opts:   opts,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, cfg Config) (*BackendResult, error) {
	store, err := f.createStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &BackendResult{Store: store}
	cleanups := []CleanupFunc{store.Close}

	// AMQP is optional; the ledger works without it
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			result.Publisher = client
			cleanups = append([]CleanupFunc{client.Close}, cleanups...)
		}
	}

	result.Service = services.NewLedgerService(store, result.Publisher, f.opts...)
	result.Cleanup = func() error {
		var errs []error
		for _, c := range cleanups {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	f.logger.InfoContext(ctx, "Initialized ledger backend",
		log.FieldBackend, cfg.Type.String(),
		"events_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createStore(ctx context.Context, cfg Config) (ledger.Store, error) {
	switch cfg.Type {
	case MemoryBackend:
		return memory.New(), nil
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		return repo, nil
	case PostgresBackend:
		repo, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("invalid backend type: %s", cfg.Type)
	}
}
