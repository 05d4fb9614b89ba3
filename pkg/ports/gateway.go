package ports

import (
	"context"

	"github.com/aretw0/intake/pkg/domain"
)

// Gateway is the durable store contract.
//
// Every write is atomic with respect to concurrent reads of the same event:
// a reader never observes a half-written challenge.
type Gateway interface {
	// CreateDraft inserts a new event in draft status together with its session row.
	CreateDraft(ctx context.Context, event *domain.Event, session *domain.SessionRecord) error

	// CommitParentFields merges fields into the event. It is additive: a field
	// absent from fields, or skipped, never clears a committed value.
	CommitParentFields(ctx context.Context, eventID string, fields domain.Fields) error

	// UpsertChild inserts or replaces the challenge keyed by (eventID, orderIndex).
	// Returns domain.ErrBudgetExceeded when the committed prizes would exceed the budget.
	UpsertChild(ctx context.Context, eventID string, orderIndex int, fields domain.Fields) error

	// SaveSession checkpoints a session for resumability.
	SaveSession(ctx context.Context, session *domain.SessionRecord) error

	// LoadSession returns domain.ErrSessionNotFound for unknown IDs.
	LoadSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error)

	// LoadEvent returns the event with its challenges ordered by index,
	// or domain.ErrEventNotFound.
	LoadEvent(ctx context.Context, eventID string) (*domain.Event, error)
}
