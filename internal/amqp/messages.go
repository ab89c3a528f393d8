package amqp

import (
	"encoding/json"
	"time"

	"pocket/internal/core"
)

// AlertMessage is the wire form of a budget alert. The worker only needs the
// rendered alert, so no ledger lookup happens on the consuming side.
type AlertMessage struct {
	Kind      core.AlertKind `json:"kind"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewAlertMessage(alert core.Alert) *AlertMessage {
	return &AlertMessage{
		Kind:      alert.Kind,
		Title:     alert.Title,
		Message:   alert.Message,
		Timestamp: time.Now(),
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
