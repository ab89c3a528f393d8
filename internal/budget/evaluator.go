// Package budget evaluates monthly spend against configured budgets and
// produces threshold alerts. Evaluation is pure; dispatching alerts to the
// user is the Dispatcher's job.
package budget

import (
	"fmt"

	"pocket/internal/core"
)

// Alert tiers fire exclusively: at or past 100% only the exceeded alert is
// emitted, between 90% and 100% only the warning.
const (
	warnPercent   = 90.0
	exceedPercent = 100.0
)

// MonthTotals is the expense spend of one user for one month, computed by
// the store over the inclusive calendar-month range. Income never
// participates. CategoryNames carries display names for message text when
// the store can resolve them; absent entries fall back to the id.
type MonthTotals struct {
	Total         core.Money
	ByCategory    map[string]core.Money
	CategoryNames map[string]string
}

// Evaluate compares a month's spend against its budget and returns the
// alerts to show, monthly tier first, then category tiers in the order the
// limits were configured. A nil budget means none is set and produces no
// alerts.
func Evaluate(month string, totals MonthTotals, b *core.Budget) []core.Alert {
	if b == nil {
		return nil
	}

	var alerts []core.Alert

	if b.MonthlyLimit.Cents > 0 {
		percent := float64(totals.Total.Cents) / float64(b.MonthlyLimit.Cents) * 100
		switch {
		case percent >= exceedPercent:
			alerts = append(alerts, core.Alert{
				Kind:  core.MonthlyExceeded,
				Title: "Monthly budget exceeded",
				Message: fmt.Sprintf("You have spent %.2f of your %.2f budget for %s (%.0f%%).",
					totals.Total.Float64(), b.MonthlyLimit.Float64(), month, percent),
			})
		case percent >= warnPercent:
			alerts = append(alerts, core.Alert{
				Kind:  core.MonthlyWarning,
				Title: "Monthly budget warning",
				Message: fmt.Sprintf("You have used %.0f%% of your %.2f budget for %s.",
					percent, b.MonthlyLimit.Float64(), month),
			})
		}
	}

	for _, cb := range b.Categories {
		if cb.Limit.Cents <= 0 {
			continue
		}
		spent := totals.ByCategory[cb.CategoryID]
		percent := float64(spent.Cents) / float64(cb.Limit.Cents) * 100
		name := totals.CategoryNames[cb.CategoryID]
		if name == "" {
			name = cb.CategoryID
		}
		switch {
		case percent >= exceedPercent:
			alerts = append(alerts, core.Alert{
				Kind:  core.CategoryExceeded,
				Title: "Category budget exceeded",
				Message: fmt.Sprintf("Spending on %s reached %.2f of its %.2f limit for %s (%.0f%%).",
					name, spent.Float64(), cb.Limit.Float64(), month, percent),
			})
		case percent >= warnPercent:
			alerts = append(alerts, core.Alert{
				Kind:  core.CategoryWarning,
				Title: "Category budget warning",
				Message: fmt.Sprintf("Spending on %s has used %.0f%% of its %.2f limit for %s.",
					name, percent, cb.Limit.Float64(), month),
			})
		}
	}

	return alerts
}
