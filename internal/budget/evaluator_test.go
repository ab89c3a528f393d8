package budget

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pocket/internal/core"
)

func money(cents int64) core.Money { return core.Money{Cents: cents} }

func TestEvaluateNilBudget(t *testing.T) {
	alerts := Evaluate("2024-06", MonthTotals{Total: money(99999)}, nil)
	if alerts != nil {
		t.Fatalf("expected no alerts, got %+v", alerts)
	}
}

func TestEvaluateMonthlyTiers(t *testing.T) {
	b := &core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: money(10000)}

	cases := []struct {
		name  string
		spent int64
		want  []core.AlertKind
	}{
		{"below warning", 8999, nil},
		{"at warning", 9000, []core.AlertKind{core.MonthlyWarning}},
		{"between", 9500, []core.AlertKind{core.MonthlyWarning}},
		{"at limit", 10000, []core.AlertKind{core.MonthlyExceeded}},
		{"over limit", 12000, []core.AlertKind{core.MonthlyExceeded}},
	}
	for _, tc := range cases {
		alerts := Evaluate("2024-06", MonthTotals{Total: money(tc.spent)}, b)
		if len(alerts) != len(tc.want) {
			t.Fatalf("%s: got %d alerts, want %d", tc.name, len(alerts), len(tc.want))
		}
		for i, kind := range tc.want {
			if alerts[i].Kind != kind {
				t.Fatalf("%s: alert %d = %s, want %s", tc.name, i, alerts[i].Kind, kind)
			}
		}
	}
}

func TestEvaluateZeroMonthlyLimit(t *testing.T) {
	b := &core.Budget{UserID: "u1", Month: "2024-06"}
	if alerts := Evaluate("2024-06", MonthTotals{Total: money(50000)}, b); len(alerts) != 0 {
		t.Fatalf("zero limit must never alert, got %+v", alerts)
	}
}

func TestEvaluateCategoryTiers(t *testing.T) {
	b := &core.Budget{
		UserID: "u1",
		Month:  "2024-06",
		Categories: []core.CategoryBudget{
			{CategoryID: "cat1", Limit: money(5000)},
			{CategoryID: "cat2", Limit: money(5000)},
		},
	}
	totals := MonthTotals{
		Total: money(5100),
		ByCategory: map[string]core.Money{
			"cat1": money(5100),
			// cat2 has no spend at all
		},
	}
	alerts := Evaluate("2024-06", totals, b)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1: %+v", len(alerts), alerts)
	}
	if alerts[0].Kind != core.CategoryExceeded {
		t.Fatalf("kind = %s", alerts[0].Kind)
	}
}

func TestEvaluateOrdering(t *testing.T) {
	// Monthly tier first, then categories in configured order.
	b := &core.Budget{
		UserID:       "u1",
		Month:        "2024-06",
		MonthlyLimit: money(10000),
		Categories: []core.CategoryBudget{
			{CategoryID: "b-second", Limit: money(1000)},
			{CategoryID: "a-first", Limit: money(1000)},
		},
	}
	totals := MonthTotals{
		Total: money(20000),
		ByCategory: map[string]core.Money{
			"a-first":  money(950),
			"b-second": money(2000),
		},
	}
	alerts := Evaluate("2024-06", totals, b)
	want := []core.AlertKind{core.MonthlyExceeded, core.CategoryExceeded, core.CategoryWarning}
	if len(alerts) != len(want) {
		t.Fatalf("got %d alerts: %+v", len(alerts), alerts)
	}
	for i, kind := range want {
		if alerts[i].Kind != kind {
			t.Fatalf("alert %d = %s, want %s", i, alerts[i].Kind, kind)
		}
	}
}

func TestEvaluateMonotonicTiers(t *testing.T) {
	// Crossing a threshold switches tier; it never emits both at once.
	b := &core.Budget{UserID: "u1", Month: "2024-06", MonthlyLimit: money(10000)}
	for spent := int64(8500); spent <= 11000; spent += 100 {
		alerts := Evaluate("2024-06", MonthTotals{Total: money(spent)}, b)
		if len(alerts) > 1 {
			t.Fatalf("spend %d emitted %d monthly alerts", spent, len(alerts))
		}
	}
}

func TestEvaluateUsesCategoryNames(t *testing.T) {
	b := &core.Budget{
		UserID:     "u1",
		Month:      "2024-06",
		Categories: []core.CategoryBudget{{CategoryID: "cat1", Limit: money(1000)}},
	}
	totals := MonthTotals{
		ByCategory:    map[string]core.Money{"cat1": money(2000)},
		CategoryNames: map[string]string{"cat1": "Food"},
	}
	alerts := Evaluate("2024-06", totals, b)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts", len(alerts))
	}
	if got := alerts[0].Message; !strings.Contains(got, "Food") {
		t.Fatalf("message %q does not mention category name", got)
	}
}

type recordingNotifier struct {
	shown  []core.Alert
	failAt int // 1-based index to fail on, 0 = never
}

func (n *recordingNotifier) ShowAlert(_ context.Context, alert core.Alert) error {
	n.shown = append(n.shown, alert)
	if n.failAt > 0 && len(n.shown) == n.failAt {
		return errors.New("dismissed with error")
	}
	return nil
}

func TestDispatchSequential(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(n)
	alerts := []core.Alert{
		{Kind: core.MonthlyExceeded},
		{Kind: core.CategoryWarning},
	}
	if err := d.Dispatch(context.Background(), alerts); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(n.shown) != 2 || n.shown[0].Kind != core.MonthlyExceeded {
		t.Fatalf("shown = %+v", n.shown)
	}
}

func TestDispatchStopsOnError(t *testing.T) {
	n := &recordingNotifier{failAt: 1}
	d := NewDispatcher(n)
	err := d.Dispatch(context.Background(), []core.Alert{{Kind: core.MonthlyWarning}, {Kind: core.CategoryWarning}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(n.shown) != 1 {
		t.Fatalf("later alerts must not be shown after a failure, shown = %d", len(n.shown))
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(n)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := d.Dispatch(ctx, []core.Alert{{Kind: core.MonthlyWarning}})
	if err == nil {
		t.Fatalf("expected context error")
	}
	if len(n.shown) != 0 {
		t.Fatalf("no alert should be shown after cancellation")
	}
}

func TestDispatchNilNotifier(t *testing.T) {
	d := NewDispatcher(nil)
	if err := d.Dispatch(context.Background(), []core.Alert{{Kind: core.MonthlyWarning}}); err != nil {
		t.Fatalf("nil notifier should be a no-op, got %v", err)
	}
}
