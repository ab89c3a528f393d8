package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

type (
	TransactionType string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is a single dated money movement. Category, and Color are
	// denormalized copies of the owning category taken at write time; the
	// rename/recolor cascade keeps them in sync.
	Transaction struct {
		ID         string
		Title      string
		Amount     Money // signed: income positive, expense negative
		Type       TransactionType
		Date       Date
		Category   string
		CategoryID string
		Color      string
		UserID     string
		ImageURL   string
	}

	// TransactionPatch is a partial update; nil fields are left untouched.
	TransactionPatch struct {
		Title      *string
		Amount     *Money
		Type       *TransactionType
		Date       *Date
		Category   *string
		CategoryID *string
		Color      *string
		ImageURL   *string
	}

	Category struct {
		ID     string
		Name   string
		Color  string
		UserID string
	}

	// CategoryBudget is one per-category spending limit inside a Budget.
	// Budgets keep these as an ordered slice so alert emission follows the
	// order the limits were configured in.
	CategoryBudget struct {
		CategoryID string
		Limit      Money
	}

	// Budget is the spending ceiling for one (user, month) pair. A zero
	// MonthlyLimit means no monthly ceiling is set.
	Budget struct {
		UserID       string
		Month        string // YYYY-MM
		MonthlyLimit Money
		Categories   []CategoryBudget
		CreatedAt    time.Time
		UpdatedAt    time.Time
	}

	AlertKind string

	// Alert is a transient threshold notification. Alerts are computed from
	// spend vs budget after each mutation and shown once; they are never
	// persisted.
	Alert struct {
		Kind    AlertKind
		Title   string
		Message string
	}
)

const (
	MonthlyWarning   AlertKind = "monthly_warning"
	MonthlyExceeded  AlertKind = "monthly_exceeded"
	CategoryWarning  AlertKind = "category_warning"
	CategoryExceeded AlertKind = "category_exceeded"
)

var (
	ErrUnauthenticated   = errors.New("no user")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyTitle        = errors.New("empty title")
	ErrInvalidType       = errors.New("invalid transaction type")
	ErrAmountSign        = errors.New("amount sign does not match type")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrEmptyCategoryName = errors.New("empty category name")
	ErrDuplicateCategory = errors.New("duplicate category name")
	ErrNegativeLimit     = errors.New("budget limit cannot be negative")
	ErrNotFound          = errors.New("not found")
)

// ParseDate parses the YYYY-MM-DD wire format used everywhere dates move
// between the store and the domain.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MonthKey returns the YYYY-MM key of the month the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// ParseMonth validates a YYYY-MM month key and returns its year and month.
func ParseMonth(s string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return 0, 0, ErrInvalidMonth
	}
	return t.Year(), t.Month(), nil
}

// MonthBounds returns the inclusive first and last day of a YYYY-MM month as
// YYYY-MM-DD strings, the range budget totals are computed over.
func MonthBounds(month string) (string, string, error) {
	year, m, err := ParseMonth(month)
	if err != nil {
		return "", "", err
	}
	first := time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	return first.Format("2006-01-02"), last.Format("2006-01-02"), nil
}

func (m Money) Abs() Money {
	if m.Cents < 0 {
		return Money{Cents: -m.Cents}
	}
	return m
}

func (m Money) IsZero() bool {
	return m.Cents == 0
}

// Float64 returns the value in whole currency units for display.
// Use cents for calculations.
func (m Money) Float64() float64 {
	return float64(m.Cents) / 100.0
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Validate checks the invariants a transaction must hold before any I/O:
// non-empty title, non-zero amount, a known type, a date, and an amount sign
// matching the type.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrUnauthenticated
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if len(t.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if t.Amount.Cents == 0 {
		return ErrInvalidAmount
	}
	if t.Type == Income && t.Amount.Cents < 0 {
		return ErrAmountSign
	}
	if t.Type == Expense && t.Amount.Cents > 0 {
		return ErrAmountSign
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	return nil
}

// NormalizeCategoryName trims, collapses inner whitespace and lowercases a
// category name. Two names that normalize equal are duplicates for the same
// user.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUnauthenticated
	}
	if NormalizeCategoryName(c.Name) == "" {
		return ErrEmptyCategoryName
	}
	return nil
}

// Validate rejects malformed months and negative limits. A limit of zero is
// allowed and means "unset".
func (b Budget) Validate() error {
	if strings.TrimSpace(b.UserID) == "" {
		return ErrUnauthenticated
	}
	if _, _, err := ParseMonth(b.Month); err != nil {
		return err
	}
	if b.MonthlyLimit.Cents < 0 {
		return ErrNegativeLimit
	}
	for _, cb := range b.Categories {
		if cb.Limit.Cents < 0 {
			return ErrNegativeLimit
		}
	}
	return nil
}

// Apply writes the patch's non-nil fields onto a transaction.
func (p TransactionPatch) Apply(tx *Transaction) {
	if p.Title != nil {
		tx.Title = *p.Title
	}
	if p.Amount != nil {
		tx.Amount = *p.Amount
	}
	if p.Type != nil {
		tx.Type = *p.Type
	}
	if p.Date != nil {
		tx.Date = *p.Date
	}
	if p.Category != nil {
		tx.Category = *p.Category
	}
	if p.CategoryID != nil {
		tx.CategoryID = *p.CategoryID
	}
	if p.Color != nil {
		tx.Color = *p.Color
	}
	if p.ImageURL != nil {
		tx.ImageURL = *p.ImageURL
	}
}

// CategoryLimit returns the configured limit for a category, if present.
func (b Budget) CategoryLimit(categoryID string) (Money, bool) {
	for _, cb := range b.Categories {
		if cb.CategoryID == categoryID {
			return cb.Limit, true
		}
	}
	return Money{}, false
}
