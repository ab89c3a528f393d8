// Package ledger declares the outbound ports of the application: the stores
// the orchestration layer persists through. Adapters live in subpackages
// (memory) and in internal/storage (SQLite); a single repository typically
// implements all three.
package ledger

import (
	"context"

	"pocket/internal/budget"
	"pocket/internal/core"
)

// Ports for outbound adapters.
type (
	TransactionStore interface {
		// ListTransactions returns all of a user's transactions ordered by
		// date descending.
		ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error)

		// GetTransaction returns one transaction by id, core.ErrNotFound
		// when absent.
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)

		// AddTransaction persists a transaction and returns the
		// store-assigned id.
		AddTransaction(ctx context.Context, tx core.Transaction) (id string, err error)

		// UpdateTransaction applies a partial update; nil patch fields stay
		// untouched.
		UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error

		DeleteTransaction(ctx context.Context, id string) error

		// ListTransactionsByCategory returns a user's transactions
		// referencing a category id.
		ListTransactionsByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error)

		// MonthlyExpenseTotals sums expense spend for one YYYY-MM month,
		// overall and per category id, over the inclusive calendar-month
		// date range. Income rows never contribute.
		MonthlyExpenseTotals(ctx context.Context, userID, month string) (budget.MonthTotals, error)
	}

	BudgetStore interface {
		// GetBudget returns the budget for (user, month) or nil when none
		// is configured. A missing budget is not an error.
		GetBudget(ctx context.Context, userID, month string) (*core.Budget, error)

		// SetBudget replaces the full record for (user, month); there is no
		// partial merge. The stored budget is returned with timestamps.
		SetBudget(ctx context.Context, b core.Budget) (core.Budget, error)

		DeleteBudget(ctx context.Context, userID, month string) error
	}

	CategoryStore interface {
		ListCategories(ctx context.Context, userID string) ([]core.Category, error)

		GetCategory(ctx context.Context, id string) (core.Category, error)

		// AddCategory persists a category and returns its id. Names that
		// normalize equal to an existing category of the same user are
		// rejected with core.ErrDuplicateCategory.
		AddCategory(ctx context.Context, c core.Category) (id string, err error)

		// UpdateCategory rewrites name and color of an existing category,
		// with the same duplicate-name rule as AddCategory.
		UpdateCategory(ctx context.Context, c core.Category) error

		DeleteCategory(ctx context.Context, id string) error
	}
)
