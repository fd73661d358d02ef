package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	// Kind is the direction of a transaction. Sign is always carried here,
	// never by a negative amount.
	Kind string

	// Date is a calendar date with no time component.
	Date struct {
		time.Time
	}

	// Transaction is a single funding event in the ledger.
	Transaction struct {
		ID         int64     `json:"id"`
		Kind       Kind      `json:"kind"`
		Amount     Money     `json:"amount"`
		Category   string    `json:"category"`
		Note       string    `json:"note,omitempty"`
		OccurredOn Date      `json:"occurred_on"`
		CreatedBy  string    `json:"created_by"`
		CreatedAt  time.Time `json:"created_at"`
	}

	// TransactionInput is the raw, unvalidated shape of a create/update
	// command. Every field arrives as text from the wire; ParseInput turns
	// it into a Transaction or a ValidationError.
	TransactionInput struct {
		Kind       string `json:"kind"`
		Amount     string `json:"amount"`
		Category   string `json:"category"`
		Note       string `json:"note"`
		OccurredOn string `json:"occurred_on"`
	}

	// Filter narrows a ledger listing. Zero-value fields impose no
	// constraint; provided fields combine with logical AND.
	Filter struct {
		Kind     Kind
		Category string
		DateFrom Date
		DateTo   Date
	}
)

var (
	ErrNotFound     = errors.New("transaction not found")
	ErrUnauthorized = errors.New("caller lacks required capability")
)

// ValidationError carries a field-to-message map for malformed input.
// It is returned before any write touches the store.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid transaction: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// ParseKind validates a kind label.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Income:
		return Income, nil
	case Expense:
		return Expense, nil
	default:
		return "", fmt.Errorf("unknown kind %q", s)
	}
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

// NewDate builds a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	parsed, err := ParseDate(strings.Trim(string(b), `"`))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseInput validates a raw command and produces the transaction value to
// persist. ID, CreatedBy and CreatedAt are assigned by the store. Field
// problems are collected into a single ValidationError so callers can render
// per-field messages.
func ParseInput(in TransactionInput) (Transaction, error) {
	verr := &ValidationError{}
	var tx Transaction

	kind, err := ParseKind(in.Kind)
	if err != nil {
		verr.add("kind", `must be "income" or "expense"`)
	} else {
		tx.Kind = kind
	}

	cents, err := ParseDecimalToCents(in.Amount)
	if err != nil {
		verr.add("amount", "must be a positive decimal amount")
	} else {
		tx.Amount = Money{Cents: cents}
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		verr.add("category", "is required")
	} else if len(category) > 120 {
		verr.add("category", "too long (max 120 characters)")
	}
	tx.Category = category

	note := strings.TrimSpace(in.Note)
	if len(note) > 500 {
		verr.add("note", "too long (max 500 characters)")
	}
	tx.Note = note

	occurred, err := ParseDate(in.OccurredOn)
	if err != nil {
		verr.add("occurred_on", "must be a valid YYYY-MM-DD date")
	} else {
		tx.OccurredOn = occurred
	}

	if len(verr.Fields) > 0 {
		return Transaction{}, verr
	}
	return tx, nil
}
