package core

import "testing"

func tx(kind Kind, cents int64, category string) Transaction {
	return Transaction{Kind: kind, Amount: Money{Cents: cents}, Category: category}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	if s.IncomeTotal.Cents != 0 || s.ExpenseTotal.Cents != 0 || s.NetTotal.Cents != 0 {
		t.Fatalf("expected zero totals, got %+v", s)
	}
	if s.ByCategory == nil || len(s.ByCategory) != 0 {
		t.Fatalf("expected empty non-nil category map, got %v", s.ByCategory)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]Transaction{
		tx(Income, 10000, "Sponsor"),
		tx(Expense, 4000, "Supplies"),
		tx(Income, 2500, "Supplies"),
		tx(Expense, 500, "Supplies"),
	})
	if s.IncomeTotal.Cents != 12500 {
		t.Fatalf("income total = %d, want 12500", s.IncomeTotal.Cents)
	}
	if s.ExpenseTotal.Cents != 4500 {
		t.Fatalf("expense total = %d, want 4500", s.ExpenseTotal.Cents)
	}
	if s.NetTotal.Cents != s.IncomeTotal.Cents-s.ExpenseTotal.Cents {
		t.Fatalf("net total = %d, want income-expense", s.NetTotal.Cents)
	}
	sponsor := s.ByCategory["Sponsor"]
	if sponsor.Income.Cents != 10000 || sponsor.Expense.Cents != 0 {
		t.Fatalf("unexpected Sponsor totals: %+v", sponsor)
	}
	supplies := s.ByCategory["Supplies"]
	if supplies.Income.Cents != 2500 || supplies.Expense.Cents != 4500 {
		t.Fatalf("unexpected Supplies totals: %+v", supplies)
	}
}

func TestSummarizeManySmallAmountsNoDrift(t *testing.T) {
	var txs []Transaction
	for i := 0; i < 10000; i++ {
		txs = append(txs, tx(Income, 1, "Micro")) // 0.01 each
	}
	s := Summarize(txs)
	if s.IncomeTotal.Cents != 10000 {
		t.Fatalf("income total = %d, want exactly 10000", s.IncomeTotal.Cents)
	}
}
