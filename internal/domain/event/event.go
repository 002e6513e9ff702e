package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a domain event emitted by the approval and allocation
// services. Events are in-process only; the notification handler fans them
// out to the external notification collaborator.
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	TenantID      string                 `json:"tenant_id"`
	ExpenseID     string                 `json:"expense_id"`
	ExecutionID   int64                  `json:"execution_id,omitempty"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// New creates an event with a fresh id and correlation id.
func New(eventType Type, tenantID, expenseID string, executionID int64, payload map[string]interface{}) *Event {
	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		TenantID:      tenantID,
		ExpenseID:     expenseID,
		ExecutionID:   executionID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: uuid.NewString(),
	}
}

// NewCorrelated creates an event linked to an existing correlation chain.
func NewCorrelated(eventType Type, tenantID, expenseID string, executionID int64, payload map[string]interface{}, correlationID string) *Event {
	e := New(eventType, tenantID, expenseID, executionID, payload)
	e.CorrelationID = correlationID
	return e
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
