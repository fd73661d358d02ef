// Package storage implements the sqlite-backed ledger store.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fundledger/internal/core"

	_ "modernc.org/sqlite"
)

const listColumns = "id, kind, amount_cents, category, note, occurred_on, created_by, created_at"

// SQLiteRepository is the default durable store for transactions and
// activity entries.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Create persists a validated transaction, assigning id, creator and
// creation time. The returned record is the stored one.
func (r *SQLiteRepository) Create(ctx context.Context, tx core.Transaction, createdBy string) (core.Transaction, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (kind, amount_cents, category, note, occurred_on, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(tx.Kind), tx.Amount.Cents, tx.Category, tx.Note,
		tx.OccurredOn.String(), createdBy, now.Format(time.RFC3339),
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read inserted id: %w", err)
	}

	tx.ID = id
	tx.CreatedBy = createdBy
	tx.CreatedAt = now

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category,
		"occurred_on", tx.OccurredOn.String())

	return tx, nil
}

// Update replaces all mutable fields of an existing transaction. Creator
// and creation time are immutable; concurrent updates are last-write-wins.
func (r *SQLiteRepository) Update(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		 SET kind = ?, amount_cents = ?, category = ?, note = ?, occurred_on = ?
		 WHERE id = ?`,
		string(tx.Kind), tx.Amount.Cents, tx.Category, tx.Note, tx.OccurredOn.String(), id,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("read affected rows: %w", err)
	}
	if affected == 0 {
		return core.Transaction{}, core.ErrNotFound
	}

	stored, err := r.Find(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if stored == nil {
		return core.Transaction{}, core.ErrNotFound
	}
	return *stored, nil
}

// Delete removes a transaction. It reports false, not an error, when the id
// does not exist.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Find returns the transaction or nil when the id is unknown.
func (r *SQLiteRepository) Find(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction %d: %w", id, err)
	}
	return &tx, nil
}

// List returns transactions matching the filter, newest occurrence first.
// Ties on the date fall back to descending id so pagination and exports are
// deterministic.
func (r *SQLiteRepository) List(ctx context.Context, filter core.Filter) ([]core.Transaction, error) {
	query := `SELECT ` + listColumns + ` FROM transactions`
	var clauses []string
	var args []any

	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.DateFrom.IsZero() {
		clauses = append(clauses, "occurred_on >= ?")
		args = append(args, filter.DateFrom.String())
	}
	if !filter.DateTo.IsZero() {
		clauses = append(clauses, "occurred_on <= ?")
		args = append(args, filter.DateTo.String())
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_on DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	// Non-nil even when empty so the wire shape stays a JSON array.
	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// AppendActivity records a feed entry. Redelivered events are dropped via
// the unique event id.
func (r *SQLiteRepository) AppendActivity(ctx context.Context, entry core.ActivityEntry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO activity_log (event_id, op, transaction_id, actor, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.EventID, entry.Op, entry.TransactionID, entry.Actor, entry.Detail,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

// ListActivity returns the newest feed entries, most recent first.
func (r *SQLiteRepository) ListActivity(ctx context.Context, limit int) ([]core.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_id, op, transaction_id, actor, detail, created_at
		 FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityEntry
	for rows.Next() {
		var e core.ActivityEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.EventID, &e.Op, &e.TransactionID, &e.Actor, &e.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx         core.Transaction
		kind       string
		occurredOn string
		createdAt  string
	)
	err := row.Scan(&tx.ID, &kind, &tx.Amount.Cents, &tx.Category, &tx.Note,
		&occurredOn, &tx.CreatedBy, &createdAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	if d, err := core.ParseDate(occurredOn); err == nil {
		tx.OccurredOn = d
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		tx.CreatedAt = t
	}
	return tx, nil
}
