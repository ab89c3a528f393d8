// Package stats computes derived financial view-models from a transaction
// snapshot. Everything here is pure: it takes a slice of transactions and
// returns aggregates, with no I/O and no retained state. Callers re-run the
// computations on every snapshot change; at personal-scale volumes a full
// recompute is cheaper than keeping incremental state correct.
package stats

import (
	"math"
	"sort"
	"time"

	"pocket/internal/core"
)

// fallbackCategory groups transactions whose category reference went stale.
const fallbackCategory = "Other"

type (
	// Summary are the general totals over a snapshot. Expenses are reported
	// as a positive magnitude; Balance = Income - Expenses.
	Summary struct {
		Income   core.Money
		Expenses core.Money
		Balance  core.Money
	}

	// PieSlice is one category's share of total expenses.
	PieSlice struct {
		Name       string
		Amount     core.Money
		Percentage float64 // 0-100, one decimal
		Color      string
	}

	// LineSeries is the 12-month income/expense timeline for one year.
	LineSeries struct {
		Year     int
		Labels   [12]string
		Income   [12]core.Money
		Expenses [12]core.Money
	}

	// MonthlyStats covers a single calendar month, including a fixed
	// 31-point daily expense series. Days past the real month length simply
	// stay zero; the series is not clamped.
	MonthlyStats struct {
		Year     int
		Month    time.Month
		Income   core.Money
		Expenses core.Money
		Balance  core.Money
		Daily    [31]core.Money
	}

	// YearlyStats is the 12-point expense bar series for one year.
	YearlyStats struct {
		Year     int
		Months   [12]core.Money
		Total    core.Money
		Average  core.Money // Total / 12, always 12
		MaxMonth time.Month
		MinMonth time.Month
	}
)

// Summarize computes the general totals. Expense rows contribute their
// absolute value, so a malformed expense stored with a positive amount is
// silently normalized rather than rejected.
func Summarize(txs []core.Transaction) Summary {
	var s Summary
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.Income.Cents += tx.Amount.Cents
		case core.Expense:
			s.Expenses.Cents += tx.Amount.Abs().Cents
		}
	}
	s.Balance.Cents = s.Income.Cents - s.Expenses.Cents
	return s
}

// CategoryBreakdown groups expense transactions by their denormalized
// category display name and returns slices sorted by amount descending
// (name ascending on ties, for a stable order).
//
// The slice color is the color of the first transaction seen for that name,
// not the canonical color of the Category entity. When transactions carry
// inconsistent colors, for example from before a recolor cascade finished,
// the group color follows snapshot order.
func CategoryBreakdown(txs []core.Transaction) []PieSlice {
	byName := make(map[string]int)
	var slices []PieSlice
	var total int64

	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		name := tx.Category
		if name == "" {
			name = fallbackCategory
		}
		cents := tx.Amount.Abs().Cents
		total += cents
		i, ok := byName[name]
		if !ok {
			byName[name] = len(slices)
			slices = append(slices, PieSlice{Name: name, Color: tx.Color})
			i = len(slices) - 1
		}
		slices[i].Amount.Cents += cents
	}

	for i := range slices {
		slices[i].Percentage = percentOf(slices[i].Amount.Cents, total)
	}

	sort.SliceStable(slices, func(i, j int) bool {
		if slices[i].Amount.Cents != slices[j].Amount.Cents {
			return slices[i].Amount.Cents > slices[j].Amount.Cents
		}
		return slices[i].Name < slices[j].Name
	})
	return slices
}

// Timeline builds the 12-month income/expense line series for a year.
func Timeline(txs []core.Transaction, year int) LineSeries {
	series := LineSeries{Year: year}
	for i := 0; i < 12; i++ {
		series.Labels[i] = time.Month(i + 1).String()[:3]
	}
	for _, tx := range txs {
		if tx.Date.Year() != year {
			continue
		}
		i := int(tx.Date.Month()) - 1
		switch tx.Type {
		case core.Income:
			series.Income[i].Cents += tx.Amount.Cents
		case core.Expense:
			series.Expenses[i].Cents += tx.Amount.Abs().Cents
		}
	}
	return series
}

// Monthly computes totals and the daily expense series for one calendar
// month.
func Monthly(txs []core.Transaction, year int, month time.Month) MonthlyStats {
	m := MonthlyStats{Year: year, Month: month}
	for _, tx := range txs {
		if tx.Date.Year() != year || tx.Date.Month() != month {
			continue
		}
		switch tx.Type {
		case core.Income:
			m.Income.Cents += tx.Amount.Cents
		case core.Expense:
			cents := tx.Amount.Abs().Cents
			m.Expenses.Cents += cents
			m.Daily[tx.Date.Day()-1].Cents += cents
		}
	}
	m.Balance.Cents = m.Income.Cents - m.Expenses.Cents
	return m
}

// Yearly computes the 12 monthly expense totals for a year. The average
// always divides by 12, never by the count of active months, and ties on
// max/min go to the earliest month.
func Yearly(txs []core.Transaction, year int) YearlyStats {
	y := YearlyStats{Year: year}
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Date.Year() != year {
			continue
		}
		i := int(tx.Date.Month()) - 1
		cents := tx.Amount.Abs().Cents
		y.Months[i].Cents += cents
		y.Total.Cents += cents
	}
	y.Average.Cents = y.Total.Cents / 12

	maxIdx, minIdx := 0, 0
	for i := 1; i < 12; i++ {
		if y.Months[i].Cents > y.Months[maxIdx].Cents {
			maxIdx = i
		}
		if y.Months[i].Cents < y.Months[minIdx].Cents {
			minIdx = i
		}
	}
	y.MaxMonth = time.Month(maxIdx + 1)
	y.MinMonth = time.Month(minIdx + 1)
	return y
}

// percentOf returns part/total as a percentage rounded to one decimal, and 0
// when total is 0.
func percentOf(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(total)*1000) / 10
}
