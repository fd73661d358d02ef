// Package backend assembles the ledger service from configuration: which
// store backs it, whether the message bus is attached.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fundledger/internal/amqp"
	"fundledger/internal/auth"
	"fundledger/internal/config"
	"fundledger/internal/service"
	"fundledger/internal/storage"
	"fundledger/internal/storage/postgres"
)

// BackendType selects the store implementation.
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}

func (bt BackendType) String() string {
	return string(bt)
}

// Factory creates the ledger service from application configuration.
type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// CreateLedger builds the configured store, attaches the bus when available
// and returns the assembled service. Closing the service releases both.
func (f *Factory) CreateLedger(ctx context.Context, cfg *config.Config) (*service.LedgerService, error) {
	backendType := BackendType(cfg.DataBackend)
	if !backendType.IsValid() {
		return nil, fmt.Errorf("invalid backend type: %s", cfg.DataBackend)
	}

	var store service.Store
	var err error
	switch backendType {
	case SQLiteBackend:
		store, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", cfg.SQLiteDBPath)
	case PostgresBackend:
		store, err = postgres.NewRepository(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("initialize postgres repository: %w", err)
		}
		f.logger.Info("Initialized Postgres backend")
	}

	// The bus is optional; without it mutations still succeed, only the
	// durable feed and the sheet mirror go dark.
	var publisher service.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			publisher = client
		}
	}

	return service.NewLedgerService(store, auth.CapabilityAuthorizer{}, publisher), nil
}
