package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithOwner sets the identity every turn is sent with.
func WithOwner(ownerID string) Option {
	return func(r *Runner) {
		r.OwnerID = ownerID
	}
}

// WithSessionID resumes an existing session instead of starting one.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithSanitizer overrides the input limits.
func WithSanitizer(s Sanitizer) Option {
	return func(r *Runner) {
		r.Sanitizer = s
	}
}
