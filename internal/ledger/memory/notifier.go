package memory

import (
	"context"
	"sync"

	"pocket/internal/core"
)

// Notifier records alerts and acknowledges them immediately. It stands in
// for the UI alert modal in tests and in the memory backend.
type Notifier struct {
	mu     sync.Mutex
	alerts []core.Alert
}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) ShowAlert(ctx context.Context, alert core.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, alert)
	return nil
}

// Alerts returns a copy of everything shown so far.
func (n *Notifier) Alerts() []core.Alert {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.Alert(nil), n.alerts...)
}

// Reset clears the recorded alerts.
func (n *Notifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = nil
}
