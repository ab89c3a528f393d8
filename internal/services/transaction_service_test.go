package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"pocket/internal/budget"
	"pocket/internal/core"
	"pocket/internal/ledger/memory"
)

// spyStore wraps the memory store to observe evaluation traffic and inject
// store failures.
type spyStore struct {
	*memory.Store

	mu           sync.Mutex
	totalsMonths []string

	failAdd    bool
	failUpdate bool
	failDelete bool
	failTotals bool
}

var errStore = errors.New("store unavailable")

func (s *spyStore) AddTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if s.failAdd {
		return "", errStore
	}
	return s.Store.AddTransaction(ctx, tx)
}

func (s *spyStore) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error {
	if s.failUpdate {
		return errStore
	}
	return s.Store.UpdateTransaction(ctx, id, patch)
}

func (s *spyStore) DeleteTransaction(ctx context.Context, id string) error {
	if s.failDelete {
		return errStore
	}
	return s.Store.DeleteTransaction(ctx, id)
}

func (s *spyStore) MonthlyExpenseTotals(ctx context.Context, userID, month string) (budget.MonthTotals, error) {
	s.mu.Lock()
	s.totalsMonths = append(s.totalsMonths, month)
	s.mu.Unlock()
	if s.failTotals {
		return budget.MonthTotals{}, errStore
	}
	return s.Store.MonthlyExpenseTotals(ctx, userID, month)
}

func (s *spyStore) evaluatedMonths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.totalsMonths...)
}

func newFixture() (*spyStore, *memory.Notifier, *TransactionService, *BudgetService) {
	store := &spyStore{Store: memory.New()}
	notifier := memory.NewNotifier()
	budgets := NewBudgetService(store.Store, store, budget.NewDispatcher(notifier))
	txs := NewTransactionService(store, budgets)
	return store, notifier, txs, budgets
}

func expenseTx(userID, title string, cents int64, date string) core.Transaction {
	d, _ := core.ParseDate(date)
	return core.Transaction{
		UserID: userID,
		Title:  title,
		Amount: core.Money{Cents: -cents},
		Type:   core.Expense,
		Date:   d,
	}
}

func TestAddValidatesBeforeStore(t *testing.T) {
	store, _, txs, _ := newFixture()
	ctx := context.Background()

	bad := expenseTx("u1", "", 5000, "2024-06-01")
	if _, err := txs.Add(ctx, bad); err != core.ErrEmptyTitle {
		t.Fatalf("err = %v, want ErrEmptyTitle", err)
	}

	list, _ := store.ListTransactions(ctx, "u1")
	if len(list) != 0 {
		t.Fatalf("invalid transaction must not reach the store")
	}
}

func TestAddUnauthenticated(t *testing.T) {
	_, _, txs, _ := newFixture()
	tx := expenseTx("", "coffee", 300, "2024-06-01")
	if _, err := txs.Add(context.Background(), tx); err != core.ErrUnauthenticated {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestAddTriggersMonthlyWarning(t *testing.T) {
	_, notifier, txs, budgets := newFixture()
	ctx := context.Background()

	if _, err := budgets.Set(ctx, core.Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: core.Money{Cents: 10000},
	}); err != nil {
		t.Fatalf("set budget: %v", err)
	}

	if _, err := txs.Add(ctx, expenseTx("u1", "groceries", 9500, "2024-06-10")); err != nil {
		t.Fatalf("add: %v", err)
	}

	alerts := notifier.Alerts()
	if len(alerts) != 1 || alerts[0].Kind != core.MonthlyWarning {
		t.Fatalf("alerts = %+v", alerts)
	}

	// Crossing 100% switches to exceeded, never both.
	notifier.Reset()
	if _, err := txs.Add(ctx, expenseTx("u1", "more", 1000, "2024-06-11")); err != nil {
		t.Fatalf("add: %v", err)
	}
	alerts = notifier.Alerts()
	if len(alerts) != 1 || alerts[0].Kind != core.MonthlyExceeded {
		t.Fatalf("alerts = %+v", alerts)
	}
}

func TestAddNoBudgetNoAlerts(t *testing.T) {
	_, notifier, txs, _ := newFixture()
	if _, err := txs.Add(context.Background(), expenseTx("u1", "rent", 100000, "2024-06-01")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if alerts := notifier.Alerts(); len(alerts) != 0 {
		t.Fatalf("no budget must mean no alerts, got %+v", alerts)
	}
}

func TestUpdateSameMonthEvaluatesOnce(t *testing.T) {
	store, _, txs, _ := newFixture()
	ctx := context.Background()

	id, err := txs.Add(ctx, expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.mu.Lock()
	store.totalsMonths = nil
	store.mu.Unlock()

	amount := core.Money{Cents: -4500}
	if err := txs.Update(ctx, "u1", id, core.TransactionPatch{Amount: &amount}); err != nil {
		t.Fatalf("update: %v", err)
	}

	months := store.evaluatedMonths()
	if len(months) != 1 || months[0] != "2024-06" {
		t.Fatalf("evaluated months = %v, want [2024-06]", months)
	}
}

func TestUpdateCrossMonthEvaluatesBoth(t *testing.T) {
	store, _, txs, _ := newFixture()
	ctx := context.Background()

	id, err := txs.Add(ctx, expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.mu.Lock()
	store.totalsMonths = nil
	store.mu.Unlock()

	newDate := core.NewDate(2024, 7, 5)
	if err := txs.Update(ctx, "u1", id, core.TransactionPatch{Date: &newDate}); err != nil {
		t.Fatalf("update: %v", err)
	}

	months := store.evaluatedMonths()
	if len(months) != 2 || months[0] != "2024-07" || months[1] != "2024-06" {
		t.Fatalf("evaluated months = %v, want new month then prior", months)
	}
}

func TestDeleteEvaluatesPriorMonth(t *testing.T) {
	store, _, txs, _ := newFixture()
	ctx := context.Background()

	id, err := txs.Add(ctx, expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	store.mu.Lock()
	store.totalsMonths = nil
	store.mu.Unlock()

	if err := txs.Delete(ctx, "u1", id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	months := store.evaluatedMonths()
	if len(months) != 1 || months[0] != "2024-06" {
		t.Fatalf("evaluated months = %v", months)
	}

	if _, err := store.GetTransaction(ctx, id); err != core.ErrNotFound {
		t.Fatalf("transaction should be gone, got %v", err)
	}
}

func TestStoreFailureLeavesCacheUntouched(t *testing.T) {
	store, _, txs, _ := newFixture()
	ctx := context.Background()

	id, err := txs.Add(ctx, expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	before, err := txs.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	store.failUpdate = true
	amount := core.Money{Cents: -9000}
	if err := txs.Update(ctx, "u1", id, core.TransactionPatch{Amount: &amount}); !errors.Is(err, errStore) {
		t.Fatalf("err = %v, want store error", err)
	}

	after, _ := txs.Snapshot(ctx, "u1")
	if len(after) != len(before) || after[0].Amount != before[0].Amount {
		t.Fatalf("cache mutated on failed store write: %+v -> %+v", before, after)
	}

	store.failUpdate = false
	store.failDelete = true
	if err := txs.Delete(ctx, "u1", id); !errors.Is(err, errStore) {
		t.Fatalf("err = %v, want store error", err)
	}
	after, _ = txs.Snapshot(ctx, "u1")
	if len(after) != 1 {
		t.Fatalf("cache mutated on failed delete")
	}
}

func TestAddStoreFailure(t *testing.T) {
	store, _, txs, _ := newFixture()
	store.failAdd = true
	_, err := txs.Add(context.Background(), expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if !errors.Is(err, errStore) {
		t.Fatalf("err = %v, want store error", err)
	}
}

func TestEvaluationFailureDoesNotFailMutation(t *testing.T) {
	store, notifier, txs, _ := newFixture()
	store.failTotals = true

	id, err := txs.Add(context.Background(), expenseTx("u1", "dinner", 4000, "2024-06-05"))
	if err != nil {
		t.Fatalf("mutation must succeed when evaluation fails, got %v", err)
	}
	if id == "" {
		t.Fatalf("expected an id")
	}
	if len(notifier.Alerts()) != 0 {
		t.Fatalf("no alerts expected")
	}
}

func TestSnapshotNewestFirst(t *testing.T) {
	_, _, txs, _ := newFixture()
	ctx := context.Background()

	if _, err := txs.Add(ctx, expenseTx("u1", "older", 100, "2024-06-01")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := txs.Add(ctx, expenseTx("u1", "newer", 100, "2024-06-20")); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap, err := txs.Snapshot(ctx, "u1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap) != 2 || snap[0].Title != "newer" {
		t.Fatalf("snapshot order = %+v", snap)
	}
}

func TestSnapshotIsolatedPerUser(t *testing.T) {
	_, _, txs, _ := newFixture()
	ctx := context.Background()

	if _, err := txs.Add(ctx, expenseTx("u1", "mine", 100, "2024-06-01")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := txs.Add(ctx, expenseTx("u2", "theirs", 100, "2024-06-01")); err != nil {
		t.Fatalf("add: %v", err)
	}

	snap, _ := txs.Snapshot(ctx, "u1")
	if len(snap) != 1 || snap[0].Title != "mine" {
		t.Fatalf("snapshot leaked across users: %+v", snap)
	}

	if err := txs.Delete(ctx, "u1", snap[0].ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	other, _ := txs.Snapshot(ctx, "u2")
	if len(other) != 1 {
		t.Fatalf("other user's data affected")
	}
}

func TestUpdateForeignTransactionRejected(t *testing.T) {
	_, _, txs, _ := newFixture()
	ctx := context.Background()

	id, err := txs.Add(ctx, expenseTx("u1", "mine", 100, "2024-06-01"))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	title := "hijack"
	if err := txs.Update(ctx, "u2", id, core.TransactionPatch{Title: &title}); err != core.ErrNotFound {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
