package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/phpdave11/gofpdf"

	"fundledger/internal/core"
)

// ToPDF renders a funding statement: summary totals on top, the transaction
// table below, in the same order the store listed them.
func ToPDF(transactions []core.Transaction, summary core.Summary, title string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetFont("Helvetica", "B", 11)

	sumW := []float64{62, 62, 62}
	pdf.CellFormat(sumW[0], 10, "Income", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Expense", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Net", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, core.FormatCents(summary.IncomeTotal.Cents), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, core.FormatCents(summary.ExpenseTotal.Cents), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, core.FormatCents(summary.NetTotal.Cents), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(245, 245, 245)

	colW := []float64{18, 24, 28, 52, 36, 28}
	pdf.CellFormat(colW[0], 8, "ID", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[1], 8, "KIND", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[2], 8, "DATE", "1", 0, "C", true, 0, "")
	pdf.CellFormat(colW[3], 8, "CATEGORY", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[4], 8, "NOTE", "1", 0, "L", true, 0, "")
	pdf.CellFormat(colW[5], 8, "AMOUNT", "1", 1, "R", true, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, tx := range transactions {
		pdf.CellFormat(colW[0], 7, strconv.FormatInt(tx.ID, 10), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 7, string(tx.Kind), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 7, tx.OccurredOn.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[3], 7, clip(tx.Category, 32), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[4], 7, clip(tx.Note, 24), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[5], 7, core.FormatCents(tx.Amount.Cents), "1", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// clip shortens s to at most max runes, never splitting a multi-byte rune.
func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
