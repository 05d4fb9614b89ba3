package domain

import "time"

// EventStatus is the publication status of an event.
type EventStatus string

const (
	EventDraft     EventStatus = "draft"
	EventPublished EventStatus = "published"
)

// Event is the durable parent record.
type Event struct {
	ID             string      `json:"id"`
	OwnerID        string      `json:"owner_id"`
	Status         EventStatus `json:"status"`
	BudgetCurrency string      `json:"budget_currency"`
	Fields         Fields      `json:"fields"`
	Challenges     []Challenge `json:"challenges"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TotalPrizes sums the prize amount of every committed challenge.
func (e *Event) TotalPrizes() float64 {
	var sum float64
	for _, c := range e.Challenges {
		if p, ok := c.Fields.Amount(FieldPrizeAmount); ok {
			sum += p
		}
	}
	return sum
}

// Challenge is the durable child record, unique per (EventID, OrderIndex).
type Challenge struct {
	EventID       string    `json:"event_id"`
	OrderIndex    int       `json:"order_index"`
	PrizeCurrency string    `json:"prize_currency"`
	Fields        Fields    `json:"fields"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SessionRecord is the durable checkpoint of a session.
// Data holds the JSON encoding of the Session at its last phase boundary.
type SessionRecord struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	OwnerID   string    `json:"owner_id"`
	Phase     Phase     `json:"phase"`
	Data      []byte    `json:"data"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompletionEvent signals that all challenges of an event are committed.
// Downstream flows (payment, publication) start from it.
type CompletionEvent struct {
	EventBase
	EventID        string  `json:"event_id"`
	OwnerID        string  `json:"owner_id"`
	TotalBudget    float64 `json:"total_budget"`
	TotalPrizes    float64 `json:"total_prizes"`
	ChallengeCount int     `json:"challenge_count"`
	Currency       string  `json:"currency"`
}
