package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fundledger/internal/core"
)

// LedgerEventMessage announces a ledger mutation on the bus. It carries the
// full transaction snapshot so consumers (feed recorder, sheet mirror) need
// no read-back; for deletes the snapshot is the record as it was removed.
type LedgerEventMessage struct {
	EventID   string           `json:"event_id"`
	Op        string           `json:"op"`
	Actor     string           `json:"actor"`
	Tx        core.Transaction `json:"transaction"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewLedgerEvent builds a message with a fresh event id.
func NewLedgerEvent(op, actor string, tx core.Transaction) *LedgerEventMessage {
	return &LedgerEventMessage{
		EventID:   uuid.NewString(),
		Op:        op,
		Actor:     actor,
		Tx:        tx,
		Timestamp: time.Now().UTC(),
	}
}

// Detail renders the human-readable feed line for this event.
func (m *LedgerEventMessage) Detail() string {
	switch m.Op {
	case core.OpDelete:
		return "removed " + string(m.Tx.Kind) + " " + core.FormatCents(m.Tx.Amount.Cents) + " (" + m.Tx.Category + ")"
	case core.OpUpdate:
		return "updated " + string(m.Tx.Kind) + " " + core.FormatCents(m.Tx.Amount.Cents) + " (" + m.Tx.Category + ")"
	default:
		return "recorded " + string(m.Tx.Kind) + " " + core.FormatCents(m.Tx.Amount.Cents) + " (" + m.Tx.Category + ")"
	}
}

func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerEventFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
