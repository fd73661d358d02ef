package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := []struct {
		in   string
		want Kind
		ok   bool
	}{
		{"income", Income, true},
		{"expense", Expense, true},
		{" Income ", Income, true},
		{"refund", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseKind(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %q, got %q (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2024-06-01" {
		t.Fatalf("round trip mismatch: %s", d)
	}
	for _, bad := range []string{"", "01-06-2024", "2024-13-01", "yesterday"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func validInput() TransactionInput {
	return TransactionInput{
		Kind:       "income",
		Amount:     "100.00",
		Category:   "Sponsor",
		Note:       "annual grant",
		OccurredOn: "2024-06-01",
	}
}

func TestParseInput(t *testing.T) {
	tx, err := ParseInput(validInput())
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if tx.Kind != Income || tx.Amount.Cents != 10000 || tx.Category != "Sponsor" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if tx.OccurredOn.String() != "2024-06-01" {
		t.Fatalf("unexpected date: %s", tx.OccurredOn)
	}
}

func TestParseInputFieldErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*TransactionInput)
		field  string
	}{
		{"bad kind", func(in *TransactionInput) { in.Kind = "refund" }, "kind"},
		{"zero amount", func(in *TransactionInput) { in.Amount = "0" }, "amount"},
		{"negative amount", func(in *TransactionInput) { in.Amount = "-5" }, "amount"},
		{"non-numeric amount", func(in *TransactionInput) { in.Amount = "lots" }, "amount"},
		{"empty category", func(in *TransactionInput) { in.Category = "  " }, "category"},
		{"bad date", func(in *TransactionInput) { in.OccurredOn = "June 1st" }, "occurred_on"},
		{"long note", func(in *TransactionInput) { in.Note = strings.Repeat("x", 501) }, "note"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.mutate(&in)
			_, err := ParseInput(in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected field %q in %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestParseInputCollectsAllFields(t *testing.T) {
	_, err := ParseInput(TransactionInput{})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"kind", "amount", "category", "occurred_on"} {
		if _, ok := verr.Fields[field]; !ok {
			t.Fatalf("expected field %q in %v", field, verr.Fields)
		}
	}
}
