package service

import (
	"context"

	"fundledger/internal/amqp"
	"fundledger/internal/core"
)

// Ports for the stores and outbound adapters the ledger service drives.
type (
	// Store persists transactions and the activity feed. Both the SQLite
	// and Postgres repositories satisfy it.
	Store interface {
		Create(ctx context.Context, tx core.Transaction, createdBy string) (core.Transaction, error)
		Update(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error)
		Delete(ctx context.Context, id int64) (bool, error)
		Find(ctx context.Context, id int64) (*core.Transaction, error)
		List(ctx context.Context, filter core.Filter) ([]core.Transaction, error)
		AppendActivity(ctx context.Context, entry core.ActivityEntry) error
		ListActivity(ctx context.Context, limit int) ([]core.ActivityEntry, error)
		Close() error
	}

	// EventPublisher announces ledger mutations on the message bus.
	EventPublisher interface {
		PublishLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
		Close() error
	}
)
