package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"pocket/internal/core"
	"pocket/internal/ledger"
	"pocket/internal/log"
)

// cascadeConcurrency bounds the fan-out of per-transaction writes during a
// category cascade.
const cascadeConcurrency = 8

// SnapshotInvalidator drops a cached transaction snapshot. Cascades rewrite
// transactions behind the mutation cache's back, so the cache must read
// through afterwards.
type SnapshotInvalidator interface {
	Invalidate(userID string)
}

// CascadeFailure is one transaction that a cascade could not rewrite.
type CascadeFailure struct {
	TransactionID string
	Err           error
}

// CascadeResult reports a cascade batch: how many items succeeded and which
// failed. Items are independent; one failure never aborts its siblings, so a
// cascade can complete with errors.
type CascadeResult struct {
	Updated int
	Failed  []CascadeFailure
}

// PartialFailure reports whether the cascade completed with errors.
func (r CascadeResult) PartialFailure() bool {
	return len(r.Failed) > 0
}

// CategoryService manages categories and the cascades that keep the
// denormalized category name/color copies on transactions in sync.
type CategoryService struct {
	cats  ledger.CategoryStore
	txs   ledger.TransactionStore
	cache SnapshotInvalidator
}

func NewCategoryService(cats ledger.CategoryStore, txs ledger.TransactionStore, cache SnapshotInvalidator) *CategoryService {
	return &CategoryService{
		cats:  cats,
		txs:   txs,
		cache: cache,
	}
}

// Create validates and stores a category. Duplicate names (after trimming,
// whitespace collapsing and lowercasing) are rejected before any I/O
// reaches the transaction side.
func (s *CategoryService) Create(ctx context.Context, c core.Category) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	id, err := s.cats.AddCategory(ctx, c)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Category created",
		log.FieldCategoryID, id,
		log.FieldUserID, c.UserID)
	return id, nil
}

// List returns the user's categories.
func (s *CategoryService) List(ctx context.Context, userID string) ([]core.Category, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, core.ErrUnauthenticated
	}
	return s.cats.ListCategories(ctx, userID)
}

// Update renames and/or recolors a category, then rewrites the denormalized
// name/color on every transaction referencing it. The per-transaction writes
// run concurrently and independently; failures are collected in the result
// and logged, never rolled back.
func (s *CategoryService) Update(ctx context.Context, userID, categoryID, name, color string) (CascadeResult, error) {
	if strings.TrimSpace(userID) == "" {
		return CascadeResult{}, core.ErrUnauthenticated
	}

	cat, err := s.cats.GetCategory(ctx, categoryID)
	if err != nil {
		return CascadeResult{}, err
	}
	if cat.UserID != userID {
		return CascadeResult{}, core.ErrNotFound
	}

	cat.Name = name
	cat.Color = color
	if err := cat.Validate(); err != nil {
		return CascadeResult{}, err
	}
	if err := s.cats.UpdateCategory(ctx, cat); err != nil {
		return CascadeResult{}, err
	}

	displayName := strings.Join(strings.Fields(name), " ")
	res := s.fanOut(ctx, userID, categoryID, func(tx core.Transaction) error {
		patch := core.TransactionPatch{Category: &displayName, Color: &color}
		return s.txs.UpdateTransaction(ctx, tx.ID, patch)
	})

	s.invalidate(userID)
	slog.InfoContext(ctx, "Category cascade completed",
		log.FieldCategoryID, categoryID,
		log.FieldUserID, userID,
		"updated", res.Updated,
		"failed", len(res.Failed))
	return res, nil
}

// Delete removes a category and, first, every transaction referencing it.
// If some transaction deletes fail the category is still removed, matching
// the store's non-transactional semantics; the survivors are orphaned and
// reported through the result.
func (s *CategoryService) Delete(ctx context.Context, userID, categoryID string) (CascadeResult, error) {
	if strings.TrimSpace(userID) == "" {
		return CascadeResult{}, core.ErrUnauthenticated
	}

	cat, err := s.cats.GetCategory(ctx, categoryID)
	if err != nil {
		return CascadeResult{}, err
	}
	if cat.UserID != userID {
		return CascadeResult{}, core.ErrNotFound
	}

	res := s.fanOut(ctx, userID, categoryID, func(tx core.Transaction) error {
		return s.txs.DeleteTransaction(ctx, tx.ID)
	})

	if res.PartialFailure() {
		slog.WarnContext(ctx, "Category delete cascade left orphaned transactions",
			log.FieldCategoryID, categoryID,
			log.FieldUserID, userID,
			"failed", len(res.Failed))
	}

	if err := s.cats.DeleteCategory(ctx, categoryID); err != nil {
		s.invalidate(userID)
		return res, fmt.Errorf("delete category: %w", err)
	}

	s.invalidate(userID)
	slog.InfoContext(ctx, "Category deleted",
		log.FieldCategoryID, categoryID,
		log.FieldUserID, userID,
		"cascaded", res.Updated,
		"failed", len(res.Failed))
	return res, nil
}

// fanOut applies op to every transaction referencing the category,
// concurrently with a bounded group. Each item settles on its own; errors
// are recorded per item and never cancel siblings.
func (s *CategoryService) fanOut(ctx context.Context, userID, categoryID string, op func(core.Transaction) error) CascadeResult {
	txs, err := s.txs.ListTransactionsByCategory(ctx, userID, categoryID)
	if err != nil {
		slog.ErrorContext(ctx, "Cascade could not list transactions",
			log.FieldCategoryID, categoryID,
			log.FieldUserID, userID,
			"error", err)
		return CascadeResult{Failed: []CascadeFailure{{Err: err}}}
	}

	var (
		mu  sync.Mutex
		res CascadeResult
	)
	var g errgroup.Group
	g.SetLimit(cascadeConcurrency)
	for _, tx := range txs {
		tx := tx
		g.Go(func() error {
			if err := op(tx); err != nil {
				slog.WarnContext(ctx, "Cascade item failed",
					log.FieldTransactionID, tx.ID,
					log.FieldCategoryID, categoryID,
					"error", err)
				mu.Lock()
				res.Failed = append(res.Failed, CascadeFailure{TransactionID: tx.ID, Err: err})
				mu.Unlock()
				return nil // siblings keep going
			}
			mu.Lock()
			res.Updated++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (s *CategoryService) invalidate(userID string) {
	if s.cache != nil {
		s.cache.Invalidate(userID)
	}
}
