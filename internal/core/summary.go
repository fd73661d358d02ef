package core

// CategoryTotals is the per-category slice of a Summary.
type CategoryTotals struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
}

// Summary holds the aggregate totals derived from a transaction set. It is
// computed fresh on every read and never persisted.
type Summary struct {
	IncomeTotal  Money                     `json:"income_total"`
	ExpenseTotal Money                     `json:"expense_total"`
	NetTotal     Money                     `json:"net_total"`
	ByCategory   map[string]CategoryTotals `json:"by_category"`
}

// Summarize folds a transaction set into totals in a single pass. It has no
// side effects and never fails: an empty input yields zero totals and an
// empty (non-nil) category map.
func Summarize(transactions []Transaction) Summary {
	s := Summary{ByCategory: make(map[string]CategoryTotals, 8)}
	for _, tx := range transactions {
		ct := s.ByCategory[tx.Category]
		if tx.Kind == Income {
			s.IncomeTotal.Cents += tx.Amount.Cents
			ct.Income.Cents += tx.Amount.Cents
		} else {
			s.ExpenseTotal.Cents += tx.Amount.Cents
			ct.Expense.Cents += tx.Amount.Cents
		}
		s.ByCategory[tx.Category] = ct
	}
	s.NetTotal.Cents = s.IncomeTotal.Cents - s.ExpenseTotal.Cents
	return s
}
