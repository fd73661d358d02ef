package service

import (
	"context"
	"fmt"
	"log/slog"

	"fundledger/internal/amqp"
	"fundledger/internal/auth"
	"fundledger/internal/core"
	"fundledger/internal/export"
)

// LedgerService orchestrates funding operations across the store and the
// message bus. Every entry point checks the caller's capability before
// touching storage; bus publish failures are logged but never fail the
// request, the mutation is already durable.
type LedgerService struct {
	store      Store
	authorizer auth.Authorizer
	publisher  EventPublisher
}

func NewLedgerService(store Store, authorizer auth.Authorizer, publisher EventPublisher) *LedgerService {
	return &LedgerService{
		store:      store,
		authorizer: authorizer,
		publisher:  publisher,
	}
}

// Create validates the input, persists the transaction and publishes a
// create event. The stored record is returned with its assigned id.
func (s *LedgerService) Create(ctx context.Context, caller auth.Caller, in core.TransactionInput) (core.Transaction, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapManage) {
		return core.Transaction{}, core.ErrUnauthorized
	}

	tx, err := core.ParseInput(in)
	if err != nil {
		return core.Transaction{}, err
	}

	created, err := s.store.Create(ctx, tx, caller.Name)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.publish(ctx, core.OpCreate, caller.Name, created)
	return created, nil
}

// Update replaces the mutable fields of an existing transaction. Identity
// fields (id, created_by, created_at) survive the update untouched.
func (s *LedgerService) Update(ctx context.Context, caller auth.Caller, id int64, in core.TransactionInput) (core.Transaction, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapManage) {
		return core.Transaction{}, core.ErrUnauthorized
	}

	tx, err := core.ParseInput(in)
	if err != nil {
		return core.Transaction{}, err
	}

	updated, err := s.store.Update(ctx, id, tx)
	if err != nil {
		return core.Transaction{}, err
	}

	s.publish(ctx, core.OpUpdate, caller.Name, updated)
	return updated, nil
}

// Delete removes a transaction. Missing ids surface core.ErrNotFound.
func (s *LedgerService) Delete(ctx context.Context, caller auth.Caller, id int64) error {
	if !s.authorizer.Allowed(ctx, caller, auth.CapManage) {
		return core.ErrUnauthorized
	}

	existing, err := s.store.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("find transaction: %w", err)
	}
	if existing == nil {
		return core.ErrNotFound
	}

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if !deleted {
		return core.ErrNotFound
	}

	s.publish(ctx, core.OpDelete, caller.Name, *existing)
	return nil
}

// ListResult pairs the filtered transactions with their aggregated totals.
type ListResult struct {
	Transactions []core.Transaction `json:"transactions"`
	Summary      core.Summary       `json:"summary"`
}

// List returns the filtered transactions, newest first, together with the
// summary computed over exactly that filtered set.
func (s *LedgerService) List(ctx context.Context, caller auth.Caller, filter core.Filter) (ListResult, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapView) {
		return ListResult{}, core.ErrUnauthorized
	}

	txs, err := s.store.List(ctx, filter)
	if err != nil {
		return ListResult{}, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	return ListResult{Transactions: txs, Summary: core.Summarize(txs)}, nil
}

// ExportCSV renders the filtered transactions as a CSV document.
func (s *LedgerService) ExportCSV(ctx context.Context, caller auth.Caller, filter core.Filter) ([]byte, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapManage) {
		return nil, core.ErrUnauthorized
	}

	txs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	doc, err := export.ToCSV(txs)
	if err != nil {
		return nil, fmt.Errorf("render csv: %w", err)
	}
	return []byte(doc), nil
}

// ExportPDF renders the filtered transactions and their summary as a PDF
// statement.
func (s *LedgerService) ExportPDF(ctx context.Context, caller auth.Caller, filter core.Filter) ([]byte, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapManage) {
		return nil, core.ErrUnauthorized
	}

	txs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return export.ToPDF(txs, core.Summarize(txs), "Funding statement")
}

// Feed returns the most recent activity entries, newest first.
func (s *LedgerService) Feed(ctx context.Context, caller auth.Caller, limit int) ([]core.ActivityEntry, error) {
	if !s.authorizer.Allowed(ctx, caller, auth.CapView) {
		return nil, core.ErrUnauthorized
	}

	entries, err := s.store.ListActivity(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

func (s *LedgerService) publish(ctx context.Context, op, actor string, tx core.Transaction) {
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping ledger event", "op", op)
		return
	}

	msg := amqp.NewLedgerEvent(op, actor, tx)
	if err := s.publisher.PublishLedgerEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"op", op, "transaction_id", tx.ID, "error", err)
	}
}

// Close releases the store and the bus connection.
func (s *LedgerService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close ledger service: %v", errs)
	}

	return nil
}
