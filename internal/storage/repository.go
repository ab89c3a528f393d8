// Package storage is the SQLite ledger backend. It implements the three
// ledger ports on a single database and owns the schema via embedded
// migrations.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pocket/internal/budget"
	"pocket/internal/core"
	"pocket/internal/ledger"
	"pocket/internal/log"
)

type SQLiteRepository struct {
	db *sql.DB
}

// Ensure interface conformance
var (
	_ ledger.TransactionStore = (*SQLiteRepository)(nil)
	_ ledger.BudgetStore      = (*SQLiteRepository)(nil)
	_ ledger.CategoryStore    = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const transactionColumns = `id, user_id, title, amount_cents, type, date, category, category_id, color, image_url`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		tx      core.Transaction
		amount  int64
		txType  string
		rawDate string
	)
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Title, &amount, &txType, &rawDate,
		&tx.Category, &tx.CategoryID, &tx.Color, &tx.ImageURL)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.Amount = core.Money{Cents: amount}
	tx.Type = core.TransactionType(txType)
	tx.Date, err = core.ParseDate(rawDate)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("stored date %q: %w", rawDate, err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

func (r *SQLiteRepository) AddTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, title, amount_cents, type, date, category, category_id, color, image_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tx.UserID, tx.Title, tx.Amount.Cents, string(tx.Type), tx.Date.String(),
		tx.Category, tx.CategoryID, tx.Color, tx.ImageURL)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		log.FieldTransactionID, id,
		log.FieldUserID, tx.UserID,
		log.FieldAmountCents, tx.Amount.Cents,
		"date", tx.Date.String())
	return id, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Amount != nil {
		add(log.FieldAmountCents, patch.Amount.Cents)
	}
	if patch.Type != nil {
		add("type", string(*patch.Type))
	}
	if patch.Date != nil {
		add("date", patch.Date.String())
	}
	if patch.Category != nil {
		add("category", *patch.Category)
	}
	if patch.CategoryID != nil {
		add(log.FieldCategoryID, *patch.CategoryID)
	}
	if patch.Color != nil {
		add("color", *patch.Color)
	}
	if patch.ImageURL != nil {
		add("image_url", *patch.ImageURL)
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) ListTransactionsByCategory(ctx context.Context, userID, categoryID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? AND category_id = ? ORDER BY date DESC, created_at DESC`,
		userID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by category: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// MonthlyExpenseTotals sums expense spend by magnitude over the inclusive
// calendar-month range, so malformed expense rows with a positive sign are
// still counted.
func (r *SQLiteRepository) MonthlyExpenseTotals(ctx context.Context, userID, month string) (budget.MonthTotals, error) {
	first, last, err := core.MonthBounds(month)
	if err != nil {
		return budget.MonthTotals{}, err
	}

	totals := budget.MonthTotals{
		ByCategory:    make(map[string]core.Money),
		CategoryNames: make(map[string]string),
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(ABS(amount_cents)), 0)
		 FROM transactions
		 WHERE user_id = ? AND type = 'expense' AND date >= ? AND date <= ?`,
		userID, first, last)
	if err := row.Scan(&totals.Total.Cents); err != nil {
		return budget.MonthTotals{}, fmt.Errorf("month total: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, MAX(category), SUM(ABS(amount_cents))
		 FROM transactions
		 WHERE user_id = ? AND type = 'expense' AND date >= ? AND date <= ? AND category_id != ''
		 GROUP BY category_id`,
		userID, first, last)
	if err != nil {
		return budget.MonthTotals{}, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			categoryID string
			name       string
			cents      int64
		)
		if err := rows.Scan(&categoryID, &name, &cents); err != nil {
			return budget.MonthTotals{}, fmt.Errorf("scan category total: %w", err)
		}
		totals.ByCategory[categoryID] = core.Money{Cents: cents}
		if name != "" {
			totals.CategoryNames[categoryID] = name
		}
	}
	if err := rows.Err(); err != nil {
		return budget.MonthTotals{}, fmt.Errorf("category totals: %w", err)
	}
	return totals, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, color FROM categories WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Color); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.UserID, &c.Name, &c.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) AddCategory(ctx context.Context, c core.Category) (string, error) {
	id := uuid.NewString()
	name := strings.Join(strings.Fields(c.Name), " ")
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, user_id, name, normalized_name, color) VALUES (?, ?, ?, ?, ?)`,
		id, c.UserID, name, core.NormalizeCategoryName(c.Name), c.Color)
	if err != nil {
		if isUniqueViolation(err) {
			return "", core.ErrDuplicateCategory
		}
		return "", fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	name := strings.Join(strings.Fields(c.Name), " ")
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, normalized_name = ?, color = ? WHERE id = ?`,
		name, core.NormalizeCategoryName(c.Name), c.Color, c.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrDuplicateCategory
		}
		return fmt.Errorf("update category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, userID, month string) (*core.Budget, error) {
	b := core.Budget{UserID: userID, Month: month}
	err := r.db.QueryRowContext(ctx,
		`SELECT monthly_limit_cents, created_at, updated_at FROM budgets WHERE user_id = ? AND month = ?`,
		userID, month).
		Scan(&b.MonthlyLimit.Cents, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get budget: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT category_id, limit_cents FROM budget_categories WHERE user_id = ? AND month = ? ORDER BY position`,
		userID, month)
	if err != nil {
		return nil, fmt.Errorf("get budget categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cb core.CategoryBudget
		if err := rows.Scan(&cb.CategoryID, &cb.Limit.Cents); err != nil {
			return nil, fmt.Errorf("scan budget category: %w", err)
		}
		b.Categories = append(b.Categories, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get budget categories: %w", err)
	}
	return &b, nil
}

// SetBudget replaces the full record for (user, month): the monthly limit is
// upserted and the category limits are rewritten wholesale, keeping their
// configured order in the position column.
func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Budget{}, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	now := time.Now().UTC()
	_, err = dbTx.ExecContext(ctx,
		`INSERT INTO budgets (user_id, month, monthly_limit_cents, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, month)
		 DO UPDATE SET monthly_limit_cents = excluded.monthly_limit_cents, updated_at = excluded.updated_at`,
		b.UserID, b.Month, b.MonthlyLimit.Cents, now, now)
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	_, err = dbTx.ExecContext(ctx,
		`DELETE FROM budget_categories WHERE user_id = ? AND month = ?`, b.UserID, b.Month)
	if err != nil {
		return core.Budget{}, fmt.Errorf("clear budget categories: %w", err)
	}
	for i, cb := range b.Categories {
		_, err = dbTx.ExecContext(ctx,
			`INSERT INTO budget_categories (user_id, month, category_id, limit_cents, position) VALUES (?, ?, ?, ?, ?)`,
			b.UserID, b.Month, cb.CategoryID, cb.Limit.Cents, i)
		if err != nil {
			return core.Budget{}, fmt.Errorf("insert budget category: %w", err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return core.Budget{}, fmt.Errorf("commit: %w", err)
	}

	stored, err := r.GetBudget(ctx, b.UserID, b.Month)
	if err != nil {
		return core.Budget{}, err
	}
	slog.InfoContext(ctx, "Budget saved to SQLite",
		log.FieldUserID, b.UserID,
		log.FieldMonth, b.Month,
		"monthly_limit_cents", b.MonthlyLimit.Cents)
	return *stored, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, month string) error {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx,
		`DELETE FROM budget_categories WHERE user_id = ? AND month = ?`, userID, month); err != nil {
		return fmt.Errorf("delete budget categories: %w", err)
	}
	if _, err := dbTx.ExecContext(ctx,
		`DELETE FROM budgets WHERE user_id = ? AND month = ?`, userID, month); err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return dbTx.Commit()
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
