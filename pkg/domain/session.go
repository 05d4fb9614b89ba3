package domain

import "time"

// ChildDraft is the in-progress data for one challenge slot.
type ChildDraft struct {
	OrderIndex int    `json:"order_index"`
	Fields     Fields `json:"fields"`
}

// Session is the per-conversation state of the intake engine.
//
// Invariant: 0 <= Cursor <= len(Children). While collecting children the
// slot at Cursor is the one being filled.
type Session struct {
	ID       string       `json:"id"`
	EventID  string       `json:"event_id"`
	OwnerID  string       `json:"owner_id"`
	Position Position     `json:"position"`
	Parent   Fields       `json:"parent"`
	Children []ChildDraft `json:"children"`
	Cursor   int          `json:"cursor"`

	// Attempts counts consecutive rejections at the current Position.
	Attempts int `json:"attempts"`
	// LastPrompt is the last question emitted to the client.
	LastPrompt string `json:"last_prompt"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session positioned at the first parent field.
func NewSession(id, eventID, ownerID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		EventID:   eventID,
		OwnerID:   ownerID,
		Position:  Position{Phase: PhaseParent},
		Parent:    Fields{},
		Children:  []ChildDraft{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Phase returns the coarse stage of the session.
func (s *Session) Phase() Phase { return s.Position.Phase }

// Current returns the child slot being filled, or nil outside the children phase.
func (s *Session) Current() *ChildDraft {
	if s.Position.Phase != PhaseChildren || s.Cursor < 0 || s.Cursor >= len(s.Children) {
		return nil
	}
	return &s.Children[s.Cursor]
}

// Snapshot returns a deep copy that shares no mutable state with s.
func (s *Session) Snapshot() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Parent = s.Parent.Clone()
	out.Children = make([]ChildDraft, len(s.Children))
	for i, c := range s.Children {
		out.Children[i] = ChildDraft{OrderIndex: c.OrderIndex, Fields: c.Fields.Clone()}
	}
	return &out
}

// PrizesExcept sums the prize of every child slot other than orderIndex.
func (s *Session) PrizesExcept(orderIndex int) float64 {
	var sum float64
	for _, c := range s.Children {
		if c.OrderIndex == orderIndex {
			continue
		}
		if p, ok := c.Fields.Amount(FieldPrizeAmount); ok {
			sum += p
		}
	}
	return sum
}
