package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventSessionStart   EventType = "session_start"
	EventFieldAccepted  EventType = "field_accepted"
	EventFieldRejected  EventType = "field_rejected"
	EventPhaseChange    EventType = "phase_change"
	EventChildCommitted EventType = "child_committed"
	EventComplete       EventType = "complete"
	EventExtraction     EventType = "extraction"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// SessionEvent is emitted when a new intake starts.
type SessionEvent struct {
	EventBase
	EventID string `json:"event_id"`
	OwnerID string `json:"owner_id"`
}

// FieldEvent is emitted when an answer is accepted or rejected.
type FieldEvent struct {
	EventBase
	Phase    Phase  `json:"phase"`
	Field    string `json:"field"`
	Child    int    `json:"child"`
	Attempts int    `json:"attempts,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// PhaseEvent is emitted on every phase transition.
type PhaseEvent struct {
	EventBase
	From Phase `json:"from"`
	To   Phase `json:"to"`
}

// ChildEvent is emitted when a challenge is upserted.
type ChildEvent struct {
	EventBase
	EventID    string  `json:"event_id"`
	OrderIndex int     `json:"order_index"`
	Prize      float64 `json:"prize"`
}

// ExtractionEvent is emitted for every oracle call.
type ExtractionEvent struct {
	EventBase
	Kind     string        `json:"kind"`
	Duration time.Duration `json:"duration"`
	OK       bool          `json:"ok"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnSessionStart   func(context.Context, *SessionEvent)
	OnFieldAccepted  func(context.Context, *FieldEvent)
	OnFieldRejected  func(context.Context, *FieldEvent)
	OnPhaseChange    func(context.Context, *PhaseEvent)
	OnChildCommitted func(context.Context, *ChildEvent)
	OnComplete       func(context.Context, *CompletionEvent)
	OnExtraction     func(context.Context, *ExtractionEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnSessionStart:   chain(h.OnSessionStart, other.OnSessionStart),
		OnFieldAccepted:  chain(h.OnFieldAccepted, other.OnFieldAccepted),
		OnFieldRejected:  chain(h.OnFieldRejected, other.OnFieldRejected),
		OnPhaseChange:    chain(h.OnPhaseChange, other.OnPhaseChange),
		OnChildCommitted: chain(h.OnChildCommitted, other.OnChildCommitted),
		OnComplete:       chain(h.OnComplete, other.OnComplete),
		OnExtraction:     chain(h.OnExtraction, other.OnExtraction),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
