package budget

import (
	"context"
	"fmt"

	"pocket/internal/core"
)

// Notifier shows one alert to the user and returns once it was acknowledged.
type Notifier interface {
	ShowAlert(ctx context.Context, alert core.Alert) error
}

// Dispatcher serializes alert delivery: each alert must be acknowledged
// before the next one is shown. This is a UX decision, not a throughput one;
// a mutation crossing two months can block its caller until every alert is
// dismissed.
type Dispatcher struct {
	notifier Notifier
}

func NewDispatcher(notifier Notifier) *Dispatcher {
	return &Dispatcher{notifier: notifier}
}

// Dispatch shows alerts one at a time. When ctx is cancelled the remaining
// alerts are dropped rather than shown later; there is nothing to leak
// because no alert is ever stored.
func (d *Dispatcher) Dispatch(ctx context.Context, alerts []core.Alert) error {
	if d == nil || d.notifier == nil {
		return nil
	}
	for _, alert := range alerts {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := d.notifier.ShowAlert(ctx, alert); err != nil {
			return fmt.Errorf("show alert %s: %w", alert.Kind, err)
		}
	}
	return nil
}
