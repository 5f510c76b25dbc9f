package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"expensectl/internal/core"
)

// ChangeBindingKey matches every change routing key.
const ChangeBindingKey = "expense.*"

// ChangeMessage announces that the expense collection changed. It carries no
// expense data; consumers reload the collection from the service.
type ChangeMessage struct {
	Operation string    `json:"operation"`
	ExpenseID int64     `json:"expense_id"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeMessage builds the message for an applied mutation.
func NewChangeMessage(m core.Mutation) *ChangeMessage {
	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	return &ChangeMessage{
		Operation: string(m.Op),
		ExpenseID: m.ExpenseID,
		Status:    m.Status,
		Timestamp: at,
	}
}

// RoutingKey returns the topic routing key for op, e.g. "expense.create".
func RoutingKey(op core.Operation) string {
	return "expense." + string(op)
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON decodes a message and checks it names an operation.
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Operation == "" {
		return nil, errors.New("change message without operation")
	}
	return &msg, nil
}
