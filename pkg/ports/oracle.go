package ports

import (
	"context"

	"github.com/aretw0/intake/pkg/domain"
)

// Oracle is a synchronous text-in, text-out completion service.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Notifier receives the completion signal once every challenge is committed.
type Notifier interface {
	IntakeCompleted(ctx context.Context, event *domain.CompletionEvent) error
}

// Intake is the driving port exposed to transports.
type Intake interface {
	Advance(ctx context.Context, req domain.Request) (*domain.Response, error)
	Session(ctx context.Context, ownerID, sessionID string) (*domain.Session, error)
	Event(ctx context.Context, ownerID, eventID string) (*domain.Event, error)
}

// OracleFunc adapts a function to the Oracle interface.
type OracleFunc func(ctx context.Context, prompt string) (string, error)

func (f OracleFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
