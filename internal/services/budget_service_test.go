package services

import (
	"context"
	"testing"

	"pocket/internal/budget"
	"pocket/internal/core"
	"pocket/internal/ledger/memory"
)

func TestBudgetRoundTrip(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, store, nil)
	ctx := context.Background()

	in := core.Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: core.Money{Cents: 10000},
		Categories:   []core.CategoryBudget{{CategoryID: "c1", Limit: core.Money{Cents: 5000}}},
	}
	stored, err := svc.Set(ctx, in)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Fatalf("timestamps not set: %+v", stored)
	}

	got, err := svc.Get(ctx, "u1", "2024-06")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatalf("expected a budget")
	}
	if got.MonthlyLimit.Cents != 10000 || len(got.Categories) != 1 || got.Categories[0].Limit.Cents != 5000 {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestBudgetSetReplacesWholesale(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, store, nil)
	ctx := context.Background()

	first := core.Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: core.Money{Cents: 10000},
		Categories: []core.CategoryBudget{
			{CategoryID: "c1", Limit: core.Money{Cents: 5000}},
			{CategoryID: "c2", Limit: core.Money{Cents: 3000}},
		},
	}
	if _, err := svc.Set(ctx, first); err != nil {
		t.Fatalf("set: %v", err)
	}

	// The second save carries no c2 entry; there is no partial merge.
	second := core.Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: core.Money{Cents: 20000},
		Categories:   []core.CategoryBudget{{CategoryID: "c1", Limit: core.Money{Cents: 7000}}},
	}
	if _, err := svc.Set(ctx, second); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, _ := svc.Get(ctx, "u1", "2024-06")
	if got.MonthlyLimit.Cents != 20000 || len(got.Categories) != 1 {
		t.Fatalf("record not replaced wholesale: %+v", got)
	}
}

func TestBudgetGetMissingIsNil(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, store, nil)

	got, err := svc.Get(context.Background(), "u1", "2024-06")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Fatalf("missing budget must be nil, got %+v", got)
	}
}

func TestBudgetDelete(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, store, nil)
	ctx := context.Background()

	if _, err := svc.Set(ctx, core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: core.Money{Cents: 100}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := svc.Delete(ctx, "u1", "2024-06"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := svc.Get(ctx, "u1", "2024-06"); got != nil {
		t.Fatalf("budget still present after delete")
	}
}

func TestBudgetSetValidation(t *testing.T) {
	store := memory.New()
	svc := NewBudgetService(store, store, nil)
	ctx := context.Background()

	if _, err := svc.Set(ctx, core.Budget{UserID: "u1", Month: "bad"}); err != core.ErrInvalidMonth {
		t.Fatalf("err = %v, want ErrInvalidMonth", err)
	}
	if _, err := svc.Set(ctx, core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: core.Money{Cents: -1}}); err != core.ErrNegativeLimit {
		t.Fatalf("err = %v, want ErrNegativeLimit", err)
	}
	if _, err := svc.Set(ctx, core.Budget{Month: "2024-06"}); err != core.ErrUnauthenticated {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestCheckMonthCategoryAlert(t *testing.T) {
	store := memory.New()
	notifier := memory.NewNotifier()
	svc := NewBudgetService(store, store, budget.NewDispatcher(notifier))
	ctx := context.Background()

	catID, err := store.AddCategory(ctx, core.Category{UserID: "u1", Name: "Food", Color: "#fff"})
	if err != nil {
		t.Fatalf("add category: %v", err)
	}
	tx := expenseTx("u1", "feast", 5100, "2024-06-15")
	tx.Category = "Food"
	tx.CategoryID = catID
	if _, err := store.AddTransaction(ctx, tx); err != nil {
		t.Fatalf("add transaction: %v", err)
	}

	if _, err := svc.Set(ctx, core.Budget{
		UserID:     "u1",
		Month:      "2024-06",
		Categories: []core.CategoryBudget{{CategoryID: catID, Limit: core.Money{Cents: 5000}}},
	}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := svc.CheckMonth(ctx, "u1", "2024-06"); err != nil {
		t.Fatalf("check: %v", err)
	}
	alerts := notifier.Alerts()
	if len(alerts) != 1 || alerts[0].Kind != core.CategoryExceeded {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func TestCheckMonthIncomeIgnored(t *testing.T) {
	store := memory.New()
	notifier := memory.NewNotifier()
	svc := NewBudgetService(store, store, budget.NewDispatcher(notifier))
	ctx := context.Background()

	d, _ := core.ParseDate("2024-06-01")
	if _, err := store.AddTransaction(ctx, core.Transaction{
		UserID: "u1",
		Title:  "salary",
		Amount: core.Money{Cents: 500000},
		Type:   core.Income,
		Date:   d,
	}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Set(ctx, core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := svc.CheckMonth(ctx, "u1", "2024-06"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if alerts := notifier.Alerts(); len(alerts) != 0 {
		t.Fatalf("income must never trigger budget alerts, got %+v", alerts)
	}
}

func TestCheckMonthOnlyCountsTargetMonth(t *testing.T) {
	store := memory.New()
	notifier := memory.NewNotifier()
	svc := NewBudgetService(store, store, budget.NewDispatcher(notifier))
	ctx := context.Background()

	// Spend sits in May; the June check must not see it.
	if _, err := store.AddTransaction(ctx, expenseTx("u1", "may spend", 9900, "2024-05-31")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := svc.Set(ctx, core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: core.Money{Cents: 10000}}); err != nil {
		t.Fatalf("set: %v", err)
	}

	if err := svc.CheckMonth(ctx, "u1", "2024-06"); err != nil {
		t.Fatalf("check: %v", err)
	}
	if alerts := notifier.Alerts(); len(alerts) != 0 {
		t.Fatalf("alerts = %+v", alerts)
	}
}
