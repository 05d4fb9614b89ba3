package ports

import (
	"context"

	"github.com/aretw0/intake/pkg/domain"
)

// DraftStore holds in-progress sessions between turns.
// It is not durable on its own: phase boundaries are committed through the Gateway.
type DraftStore interface {
	// Save persists the session under its ID.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of all stored sessions.
	List(ctx context.Context) ([]string, error)
}
