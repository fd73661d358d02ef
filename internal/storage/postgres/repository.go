// Package postgres implements the ledger store on PostgreSQL for
// deployments that outgrow the embedded sqlite database.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fundledger/internal/core"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    kind TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
    amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
    category TEXT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    occurred_on DATE NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transactions_occurred_on ON transactions (occurred_on DESC, id DESC);
CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions (category);

CREATE TABLE IF NOT EXISTS activity_log (
    id BIGSERIAL PRIMARY KEY,
    event_id TEXT NOT NULL UNIQUE,
    op TEXT NOT NULL,
    transaction_id BIGINT NOT NULL,
    actor TEXT NOT NULL DEFAULT '',
    detail TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log (created_at DESC);
`

// Repository is the Postgres-backed ledger store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Repository{pool: pool}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Create(ctx context.Context, tx core.Transaction, createdBy string) (core.Transaction, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO transactions (kind, amount_cents, category, note, occurred_on, created_by)
		 VALUES ($1, $2, $3, $4, $5::date, $6)
		 RETURNING id, created_at`,
		string(tx.Kind), tx.Amount.Cents, tx.Category, tx.Note, tx.OccurredOn.String(), createdBy,
	)
	if err := row.Scan(&tx.ID, &tx.CreatedAt); err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	tx.CreatedBy = createdBy

	slog.InfoContext(ctx, "Transaction saved",
		"id", tx.ID,
		"kind", tx.Kind,
		"amount_cents", tx.Amount.Cents,
		"category", tx.Category)

	return tx, nil
}

func (r *Repository) Update(ctx context.Context, id int64, tx core.Transaction) (core.Transaction, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE transactions
		 SET kind = $1, amount_cents = $2, category = $3, note = $4, occurred_on = $5::date
		 WHERE id = $6`,
		string(tx.Kind), tx.Amount.Cents, tx.Category, tx.Note, tx.OccurredOn.String(), id,
	)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
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

func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) Find(ctx context.Context, id int64) (*core.Transaction, error) {
	tx, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT id, kind, amount_cents, category, note, occurred_on, created_by, created_at
		 FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find transaction %d: %w", id, err)
	}
	return &tx, nil
}

func (r *Repository) List(ctx context.Context, filter core.Filter) ([]core.Transaction, error) {
	query := `SELECT id, kind, amount_cents, category, note, occurred_on, created_by, created_at
		 FROM transactions`
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = "+arg(string(filter.Kind)))
	}
	if filter.Category != "" {
		clauses = append(clauses, "category = "+arg(filter.Category))
	}
	if !filter.DateFrom.IsZero() {
		clauses = append(clauses, "occurred_on >= "+arg(filter.DateFrom.String())+"::date")
	}
	if !filter.DateTo.IsZero() {
		clauses = append(clauses, "occurred_on <= "+arg(filter.DateTo.String())+"::date")
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY occurred_on DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
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
	return out, rows.Err()
}

func (r *Repository) AppendActivity(ctx context.Context, entry core.ActivityEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO activity_log (event_id, op, transaction_id, actor, detail)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (event_id) DO NOTHING`,
		entry.EventID, entry.Op, entry.TransactionID, entry.Actor, entry.Detail,
	)
	if err != nil {
		return fmt.Errorf("append activity: %w", err)
	}
	return nil
}

func (r *Repository) ListActivity(ctx context.Context, limit int) ([]core.ActivityEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, event_id, op, transaction_id, actor, detail, created_at
		 FROM activity_log ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	defer rows.Close()

	var out []core.ActivityEntry
	for rows.Next() {
		var e core.ActivityEntry
		if err := rows.Scan(&e.ID, &e.EventID, &e.Op, &e.TransactionID, &e.Actor, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		tx         core.Transaction
		kind       string
		occurredOn time.Time
	)
	err := row.Scan(&tx.ID, &kind, &tx.Amount.Cents, &tx.Category, &tx.Note,
		&occurredOn, &tx.CreatedBy, &tx.CreatedAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Kind = core.Kind(kind)
	tx.OccurredOn = core.Date{Time: occurredOn}
	return tx, nil
}
