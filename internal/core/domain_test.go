package core

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-06-01")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.MonthKey() != "2024-06" {
		t.Fatalf("month key = %q", d.MonthKey())
	}
	if d.String() != "2024-06-01" {
		t.Fatalf("round trip = %q", d.String())
	}

	if _, err := ParseDate("01/06/2024"); err == nil {
		t.Fatalf("expected error for wrong format")
	}
	if _, err := ParseDate(""); err == nil {
		t.Fatalf("expected error for empty date")
	}
}

func TestMonthBounds(t *testing.T) {
	cases := []struct {
		month string
		first string
		last  string
	}{
		{"2024-06", "2024-06-01", "2024-06-30"},
		{"2024-02", "2024-02-01", "2024-02-29"}, // leap year
		{"2023-02", "2023-02-01", "2023-02-28"},
		{"2024-12", "2024-12-01", "2024-12-31"},
	}
	for _, tc := range cases {
		first, last, err := MonthBounds(tc.month)
		if err != nil {
			t.Fatalf("%s: expected ok, got %v", tc.month, err)
		}
		if first != tc.first || last != tc.last {
			t.Fatalf("%s: got [%s, %s], want [%s, %s]", tc.month, first, last, tc.first, tc.last)
		}
	}

	if _, _, err := MonthBounds("June 2024"); err == nil {
		t.Fatalf("expected error for invalid month key")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		UserID: "u1",
		Title:  "Groceries",
		Amount: Money{Cents: -5000},
		Type:   Expense,
		Date:   NewDate(2024, 6, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []struct {
		name string
		tx   Transaction
		want error
	}{
		{"no user", Transaction{Title: "a", Amount: Money{Cents: 100}, Type: Income, Date: NewDate(2024, 6, 1)}, ErrUnauthenticated},
		{"empty title", Transaction{UserID: "u1", Title: "  ", Amount: Money{Cents: 100}, Type: Income, Date: NewDate(2024, 6, 1)}, ErrEmptyTitle},
		{"zero amount", Transaction{UserID: "u1", Title: "a", Amount: Money{}, Type: Income, Date: NewDate(2024, 6, 1)}, ErrInvalidAmount},
		{"bad type", Transaction{UserID: "u1", Title: "a", Amount: Money{Cents: 100}, Type: "transfer", Date: NewDate(2024, 6, 1)}, ErrInvalidType},
		{"income negative", Transaction{UserID: "u1", Title: "a", Amount: Money{Cents: -100}, Type: Income, Date: NewDate(2024, 6, 1)}, ErrAmountSign},
		{"expense positive", Transaction{UserID: "u1", Title: "a", Amount: Money{Cents: 100}, Type: Expense, Date: NewDate(2024, 6, 1)}, ErrAmountSign},
		{"zero date", Transaction{UserID: "u1", Title: "a", Amount: Money{Cents: 100}, Type: Income, Date: Date{Time: time.Time{}}}, ErrInvalidDate},
	}
	for _, tc := range bads {
		if err := tc.tx.Validate(); err != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestNormalizeCategoryName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Food", "food"},
		{"  Food  ", "food"},
		{"Eating   Out", "eating out"},
		{"EATING\tOUT", "eating out"},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeCategoryName(tc.in); got != tc.want {
			t.Fatalf("NormalizeCategoryName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: Money{Cents: 10000},
		Categories:   []CategoryBudget{{CategoryID: "c1", Limit: Money{Cents: 5000}}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	if err := (Budget{UserID: "u1", Month: "06-2024"}).Validate(); err != ErrInvalidMonth {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if err := (Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: Money{Cents: -1}}).Validate(); err != ErrNegativeLimit {
		t.Fatalf("expected ErrNegativeLimit, got %v", err)
	}
	neg := Budget{UserID: "u1", Month: "2024-06", Categories: []CategoryBudget{{CategoryID: "c1", Limit: Money{Cents: -1}}}}
	if err := neg.Validate(); err != ErrNegativeLimit {
		t.Fatalf("expected ErrNegativeLimit for category, got %v", err)
	}
	if err := (Budget{Month: "2024-06"}).Validate(); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBudgetCategoryLimit(t *testing.T) {
	b := Budget{Categories: []CategoryBudget{
		{CategoryID: "c1", Limit: Money{Cents: 5000}},
		{CategoryID: "c2", Limit: Money{Cents: 2500}},
	}}
	if limit, ok := b.CategoryLimit("c2"); !ok || limit.Cents != 2500 {
		t.Fatalf("CategoryLimit(c2) = %v, %v", limit, ok)
	}
	if _, ok := b.CategoryLimit("missing"); ok {
		t.Fatalf("expected missing category to report !ok")
	}
}
