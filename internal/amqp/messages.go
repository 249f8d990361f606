package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried on the bus.
const (
	EventTransactionRecorded = "transaction.recorded"
	EventBudgetAlert         = "budget.alert"
	EventSavingsMilestone    = "savings.milestone"
	EventAchievementUnlocked = "achievement.unlocked"
	EventRecurringDue        = "recurring.due"
)

// Event is the envelope every message uses. Payload shape depends on Type.
type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type TransactionPayload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Partition string `json:"partition"`
	Date      string `json:"date"`
	Amount    string `json:"amount_usd"`
	Category  string `json:"category,omitempty"`
	Concept   string `json:"concept,omitempty"`
	Reporter  string `json:"reporter"`
}

type BudgetAlertPayload struct {
	Partition string  `json:"partition"`
	Category  string  `json:"category"`
	Spent     string  `json:"spent_usd"`
	Limit     string  `json:"limit_usd"`
	Pct       float64 `json:"pct"`
	Alert     string  `json:"alert"`
}

type SavingsMilestonePayload struct {
	Partition string  `json:"partition"`
	Goal      string  `json:"goal"`
	Milestone int     `json:"milestone"`
	NewTotal  string  `json:"new_total_usd"`
	NewPct    float64 `json:"new_pct"`
}

type AchievementPayload struct {
	Identity string `json:"identity"`
	Code     string `json:"code"`
	Title    string `json:"title"`
	Points   int    `json:"points"`
}

type RecurringDuePayload struct {
	Partition string `json:"partition"`
	Name      string `json:"name"`
	Amount    string `json:"amount_usd"`
	Day       int    `json:"day"`
}

// NewEvent wraps a payload into an envelope.
func NewEvent(eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{Type: eventType, Timestamp: time.Now().UTC(), Payload: body}, nil
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	if e.Type == "" {
		return Event{}, fmt.Errorf("event without type")
	}
	return e, nil
}

// Decode unmarshals the payload into the type matching the event.
func (e Event) Decode(out any) error {
	return json.Unmarshal(e.Payload, out)
}
