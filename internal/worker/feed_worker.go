package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fundledger/internal/amqp"
	"fundledger/internal/core"
	"fundledger/internal/service"
)

// SheetMirror is the optional spreadsheet sink for ledger events.
type SheetMirror interface {
	AppendEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error
}

// FeedWorker turns bus events into durable activity feed entries and,
// when configured, mirrors them to a spreadsheet.
type FeedWorker struct {
	store  service.Store
	mirror SheetMirror
}

func NewFeedWorker(store service.Store, mirror SheetMirror) *FeedWorker {
	return &FeedWorker{
		store:  store,
		mirror: mirror,
	}
}

// HandleLedgerEvent processes one event from the bus. The activity insert
// is idempotent on event id, so redeliveries are safe to ack.
func (w *FeedWorker) HandleLedgerEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"event_id", msg.EventID,
		"op", msg.Op,
		"transaction_id", msg.Tx.ID)

	entry := core.ActivityEntry{
		EventID:       msg.EventID,
		Op:            msg.Op,
		TransactionID: msg.Tx.ID,
		Actor:         msg.Actor,
		Detail:        msg.Detail(),
		CreatedAt:     msg.Timestamp,
	}

	if err := w.store.AppendActivity(ctx, entry); err != nil {
		return fmt.Errorf("append activity: %w", err)
	}

	// Mirror failures only log; the feed entry is already durable and the
	// sheet is a convenience copy.
	if w.mirror != nil {
		if err := w.mirror.AppendEvent(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror event to sheet",
				"event_id", msg.EventID, "error", err)
		}
	}

	return nil
}
