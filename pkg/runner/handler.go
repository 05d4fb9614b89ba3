package runner

import (
	"context"

	"github.com/aretw0/intake/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the engine's response: the next prompt, a clarification
	// or the completion notice.
	Output(ctx context.Context, resp *domain.Response) error

	// Input reads the next answer. It returns io.EOF when the user is done.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (retry notices, resume hints).
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms a prompt before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
