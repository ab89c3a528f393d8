package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"pocket/internal/budget"
	"pocket/internal/core"
	"pocket/internal/ledger"
	"pocket/internal/log"
)

// BudgetService manages budget records and runs the post-mutation check:
// fetch the month's expense totals, evaluate them against the stored budget
// and walk the resulting alerts through the dispatcher one acknowledgment at
// a time.
type BudgetService struct {
	store      ledger.BudgetStore
	txs        ledger.TransactionStore
	dispatcher *budget.Dispatcher
}

func NewBudgetService(store ledger.BudgetStore, txs ledger.TransactionStore, dispatcher *budget.Dispatcher) *BudgetService {
	return &BudgetService{
		store:      store,
		txs:        txs,
		dispatcher: dispatcher,
	}
}

// Set validates and stores a budget, replacing any existing record for the
// same (user, month) wholesale.
func (s *BudgetService) Set(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	stored, err := s.store.SetBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("set budget: %w", err)
	}
	slog.InfoContext(ctx, "Budget saved",
		log.FieldUserID, b.UserID,
		log.FieldMonth, b.Month,
		"monthly_limit_cents", b.MonthlyLimit.Cents,
		"category_limits", len(b.Categories))
	return stored, nil
}

// Get returns the budget for (user, month), nil when none is configured.
func (s *BudgetService) Get(ctx context.Context, userID, month string) (*core.Budget, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrUnauthenticated
	}
	if _, _, err := core.ParseMonth(month); err != nil {
		return nil, err
	}
	b, err := s.store.GetBudget(ctx, userID, month)
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}
	return b, nil
}

// Delete removes the budget for (user, month).
func (s *BudgetService) Delete(ctx context.Context, userID, month string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthenticated
	}
	if _, _, err := core.ParseMonth(month); err != nil {
		return err
	}
	if err := s.store.DeleteBudget(ctx, userID, month); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return nil
}

// CheckMonth evaluates one month's spend against its budget and dispatches
// the resulting alerts sequentially. With no budget configured this is a
// no-op, not an error.
func (s *BudgetService) CheckMonth(ctx context.Context, userID, month string) error {
	totals, err := s.txs.MonthlyExpenseTotals(ctx, userID, month)
	if err != nil {
		return fmt.Errorf("monthly expense totals: %w", err)
	}

	b, err := s.store.GetBudget(ctx, userID, month)
	if err != nil {
		return fmt.Errorf("get budget: %w", err)
	}

	alerts := budget.Evaluate(month, totals, b)
	if len(alerts) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Budget thresholds crossed",
		log.FieldUserID, userID,
		log.FieldMonth, month,
		log.FieldAlertCount, len(alerts))

	return s.dispatcher.Dispatch(ctx, alerts)
}
