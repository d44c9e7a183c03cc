package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types carried on the expense queue.
const (
	TypeCreated = "created"
	TypeUpdated = "updated"
	TypeDeleted = "deleted"
)

// ExpenseEvent is the lightweight message the worker consumes. It carries
// only identifiers and the figures needed for the ledger row; the worker
// fetches the full expense from the database when it needs more.
type ExpenseEvent struct {
	EventID     uuid.UUID `json:"eventId"`
	Type        string    `json:"type"`
	ExpenseID   int64     `json:"expenseId"`
	UserID      string    `json:"userId"`
	AmountCents int64     `json:"amountCents"`
	OccurredAt  time.Time `json:"occurredAt"`
}

func NewExpenseEvent(eventType string, expenseID int64, userID string, amountCents int64) *ExpenseEvent {
	return &ExpenseEvent{
		EventID:     uuid.New(),
		Type:        eventType,
		ExpenseID:   expenseID,
		UserID:      userID,
		AmountCents: amountCents,
		OccurredAt:  time.Now().UTC(),
	}
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var evt ExpenseEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}
