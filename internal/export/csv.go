// Package export serializes transaction sets for download.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"fundledger/internal/core"
)

// csvHeader is the fixed column order of a ledger export. Parsers on the
// other side rely on it, so it never changes shape.
var csvHeader = []string{"id", "kind", "amount", "category", "note", "occurred_on"}

// ToCSV renders transactions as RFC 4180 CSV in input order. The header row
// is always present, even for an empty set. Amounts are fixed two-decimal
// strings.
func ToCSV(transactions []core.Transaction) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, tx := range transactions {
		record := []string{
			fmt.Sprintf("%d", tx.ID),
			string(tx.Kind),
			core.FormatCents(tx.Amount.Cents),
			tx.Category,
			tx.Note,
			tx.OccurredOn.String(),
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("write csv record %d: %w", tx.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}
