package core

import "time"

// Feed operation labels, matching the ledger commands that produce them.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// ActivityEntry is one line of the dashboard activity feed, recorded for
// every ledger mutation. EventID deduplicates redelivered bus messages.
type ActivityEntry struct {
	ID            int64     `json:"id"`
	EventID       string    `json:"event_id"`
	Op            string    `json:"op"`
	TransactionID int64     `json:"transaction_id"`
	Actor         string    `json:"actor"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
