// Package services holds the orchestration layer: transaction mutations,
// category cascades and budget checks, each built on the ledger ports.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"pocket/internal/core"
	"pocket/internal/ledger"
	"pocket/internal/log"
)

// TransactionService orchestrates transaction mutations. Every mutation
// follows the same sequence: validate, persist, update the in-memory
// snapshot cache, then run a best-effort budget check for each month the
// mutation touched. The cache is only touched after the store confirmed the
// write, so a failed mutation leaves it exactly as it was.
type TransactionService struct {
	store   ledger.TransactionStore
	budgets *BudgetService

	mu    sync.Mutex
	cache map[string][]core.Transaction // per-user snapshot, newest first
}

func NewTransactionService(store ledger.TransactionStore, budgets *BudgetService) *TransactionService {
	return &TransactionService{
		store:   store,
		budgets: budgets,
		cache:   make(map[string][]core.Transaction),
	}
}

// Add persists a new transaction and returns the store-assigned id.
func (s *TransactionService) Add(ctx context.Context, tx core.Transaction) (string, error) {
	if err := tx.Validate(); err != nil {
		return "", err
	}

	id, err := s.store.AddTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("add transaction: %w", err)
	}
	tx.ID = id

	s.mu.Lock()
	if cached, ok := s.cache[tx.UserID]; ok {
		s.cache[tx.UserID] = append([]core.Transaction{tx}, cached...)
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "Transaction added",
		log.FieldTransactionID, id,
		log.FieldUserID, tx.UserID,
		log.FieldAmountCents, tx.Amount.Cents,
		log.FieldMonth, tx.Date.MonthKey())

	s.checkBudgets(ctx, tx.UserID, tx.Date.MonthKey())
	return id, nil
}

// Update applies a partial edit. When the edit moves the transaction across
// a month boundary both months are re-evaluated, each as its own alert
// sequence.
func (s *TransactionService) Update(ctx context.Context, userID, id string, patch core.TransactionPatch) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthenticated
	}

	prior, err := s.lookup(ctx, userID, id)
	if err != nil {
		return err
	}

	updated := prior
	patch.Apply(&updated)
	if err := updated.Validate(); err != nil {
		return err
	}

	if err := s.store.UpdateTransaction(ctx, id, patch); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[userID]; ok {
		for i := range cached {
			if cached[i].ID == id {
				cached[i] = updated
				break
			}
		}
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "Transaction updated",
		log.FieldTransactionID, id,
		log.FieldUserID, userID,
		log.FieldMonth, updated.Date.MonthKey())

	s.checkBudgets(ctx, userID, updated.Date.MonthKey())
	if prior.Date.MonthKey() != updated.Date.MonthKey() {
		s.checkBudgets(ctx, userID, prior.Date.MonthKey())
	}
	return nil
}

// Delete removes a transaction and re-evaluates the month it lived in.
func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if strings.TrimSpace(userID) == "" {
		return core.ErrUnauthenticated
	}

	prior, err := s.lookup(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[userID]; ok {
		for i := range cached {
			if cached[i].ID == id {
				s.cache[userID] = append(cached[:i], cached[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "Transaction deleted",
		log.FieldTransactionID, id,
		log.FieldUserID, userID,
		log.FieldMonth, prior.Date.MonthKey())

	s.checkBudgets(ctx, userID, prior.Date.MonthKey())
	return nil
}

// Snapshot returns the user's transaction list, newest first, loading it
// from the store on first use. The stats endpoints recompute all derived
// view-models from this snapshot.
func (s *TransactionService) Snapshot(ctx context.Context, userID string) ([]core.Transaction, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrUnauthenticated
	}

	s.mu.Lock()
	cached, ok := s.cache[userID]
	s.mu.Unlock()
	if ok {
		return append([]core.Transaction(nil), cached...), nil
	}

	txs, err := s.store.ListTransactions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	s.mu.Lock()
	s.cache[userID] = txs
	s.mu.Unlock()
	return append([]core.Transaction(nil), txs...), nil
}

// Invalidate drops the user's cached snapshot; the next Snapshot call reads
// through to the store. Category cascades call this after rewriting
// denormalized fields behind the cache's back.
func (s *TransactionService) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}

// lookup finds the prior record in the cache, falling back to the store, and
// refuses transactions owned by someone else.
func (s *TransactionService) lookup(ctx context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	for _, tx := range s.cache[userID] {
		if tx.ID == id {
			s.mu.Unlock()
			return tx, nil
		}
	}
	s.mu.Unlock()

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	return tx, nil
}

// checkBudgets runs the post-mutation budget evaluation. Failures are logged
// and swallowed: the mutation already committed and evaluation is a
// secondary, best-effort feature.
func (s *TransactionService) checkBudgets(ctx context.Context, userID, month string) {
	if s.budgets == nil {
		return
	}
	if err := s.budgets.CheckMonth(ctx, userID, month); err != nil {
		slog.ErrorContext(ctx, "Budget evaluation failed",
			log.FieldUserID, userID,
			log.FieldMonth, month,
			"error", err)
	}
}
