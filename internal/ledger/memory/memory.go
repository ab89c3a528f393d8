// Package memory is the in-process ledger backend: mutex-guarded maps with
// the same contracts as the SQLite repository. It backs the "memory" data
// backend and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pocket/internal/budget"
	"pocket/internal/core"
	"pocket/internal/ledger"
)

// Ensure interface conformance
var (
	_ ledger.TransactionStore = (*Store)(nil)
	_ ledger.BudgetStore      = (*Store)(nil)
	_ ledger.CategoryStore    = (*Store)(nil)
)

type Store struct {
	mu      sync.Mutex
	txs     []core.Transaction
	cats    []core.Category
	budgets map[string]core.Budget // userID + "/" + month
}

func New() *Store {
	return &Store{budgets: make(map[string]core.Budget)}
}

// ListTransactions returns the user's transactions ordered by date descending; equal
// dates keep newest-first insertion order.
func (s *Store) ListTransactions(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for i := len(s.txs) - 1; i >= 0; i-- {
		if s.txs[i].UserID == userID {
			out = append(out, s.txs[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, tx := range s.txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) AddTransaction(_ context.Context, tx core.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx.ID = uuid.NewString()
	s.txs = append(s.txs, tx)
	return tx.ID, nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, patch core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID != id {
			continue
		}
		patch.Apply(&s.txs[i])
		return nil
	}
	return core.ErrNotFound
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) ListTransactionsByCategory(_ context.Context, userID, categoryID string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID && tx.CategoryID == categoryID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (s *Store) MonthlyExpenseTotals(_ context.Context, userID, month string) (budget.MonthTotals, error) {
	first, last, err := core.MonthBounds(month)
	if err != nil {
		return budget.MonthTotals{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	totals := budget.MonthTotals{
		ByCategory:    make(map[string]core.Money),
		CategoryNames: make(map[string]string),
	}
	for _, tx := range s.txs {
		if tx.UserID != userID || tx.Type != core.Expense {
			continue
		}
		day := tx.Date.String()
		if day < first || day > last {
			continue
		}
		cents := tx.Amount.Abs().Cents
		totals.Total.Cents += cents
		if tx.CategoryID != "" {
			sum := totals.ByCategory[tx.CategoryID]
			sum.Cents += cents
			totals.ByCategory[tx.CategoryID] = sum
			if tx.Category != "" {
				totals.CategoryNames[tx.CategoryID] = tx.Category
			}
		}
	}
	return totals, nil
}

func (s *Store) ListCategories(_ context.Context, userID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Category
	for _, c := range s.cats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cats {
		if c.ID == id {
			return c, nil
		}
	}
	return core.Category{}, core.ErrNotFound
}

func (s *Store) AddCategory(_ context.Context, c core.Category) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.UserID, c.Name, "") {
		return "", core.ErrDuplicateCategory
	}
	c.ID = uuid.NewString()
	c.Name = strings.Join(strings.Fields(c.Name), " ")
	s.cats = append(s.cats, c)
	return c.ID, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID != c.ID {
			continue
		}
		if s.nameTaken(s.cats[i].UserID, c.Name, c.ID) {
			return core.ErrDuplicateCategory
		}
		s.cats[i].Name = strings.Join(strings.Fields(c.Name), " ")
		s.cats[i].Color = c.Color
		return nil
	}
	return core.ErrNotFound
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID == id {
			s.cats = append(s.cats[:i], s.cats[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) GetBudget(_ context.Context, userID, month string) (*core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[userID+"/"+month]
	if !ok {
		return nil, nil
	}
	out := b
	out.Categories = append([]core.CategoryBudget(nil), b.Categories...)
	return &out, nil
}

func (s *Store) SetBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := b.UserID + "/" + b.Month
	now := time.Now().UTC()
	if prev, ok := s.budgets[key]; ok {
		b.CreatedAt = prev.CreatedAt
	} else {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
	b.Categories = append([]core.CategoryBudget(nil), b.Categories...)
	s.budgets[key] = b
	return b, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, month string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.budgets, userID+"/"+month)
	return nil
}

// nameTaken reports whether another category of the user normalizes to the
// same name. Callers hold s.mu.
func (s *Store) nameTaken(userID, name, excludeID string) bool {
	norm := core.NormalizeCategoryName(name)
	for _, c := range s.cats {
		if c.UserID == userID && c.ID != excludeID && core.NormalizeCategoryName(c.Name) == norm {
			return true
		}
	}
	return false
}
