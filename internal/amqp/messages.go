package amqp

import (
	"encoding/json"
	"time"
)

// PlansImportedMessage announces a committed bulk plan import. It carries
// only the affected periods and the row count; consumers re-read the plans
// from the store.
type PlansImportedMessage struct {
	Periods   []string  `json:"periods"` // first-of-month dates, YYYY-MM-DD
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPlansImportedMessage(periods []string, count int) *PlansImportedMessage {
	return &PlansImportedMessage{
		Periods:   periods,
		Count:     count,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *PlansImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PlansImportedMessageFromJSON creates a message from JSON bytes.
func PlansImportedMessageFromJSON(data []byte) (*PlansImportedMessage, error) {
	var msg PlansImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
