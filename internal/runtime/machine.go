package runtime

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Turn is one user answer as seen by the Machine.
type Turn struct {
	// Token is the position token the client echoes back. Optional.
	Token string
	// LastQuestion is the prompt being answered. Optional.
	LastQuestion string
	Message      string
}

// Outcome is what the Machine decided for a turn.
type Outcome struct {
	Prompt        string
	Clarification bool
	Attempts      int
	Escalated     bool
	Optional      []string
	Complete      bool

	// PhaseChanged is set when the turn crossed a phase boundary.
	PhaseChanged bool
	// Committed is set when the turn wrote a challenge to the gateway.
	Committed bool
	// Completion is set on the turn that reached PhaseComplete.
	Completion *domain.CompletionEvent
}

// Machine is the intake state machine. It is stateless: every Step mutates the
// Session it is given, and the caller owns persisting it.
type Machine struct {
	catalog     *catalog.Catalog
	gateway     ports.Gateway
	extractor   catalog.Extractor
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	now         func() time.Time
	maxAttempts int
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithMaxAttempts flags a field as escalated after n consecutive rejections.
// Zero keeps re-asking without ever escalating.
func WithMaxAttempts(n int) Option {
	return func(m *Machine) {
		if n >= 0 {
			m.maxAttempts = n
		}
	}
}

// NewMachine creates a Machine over the given catalog and durable store.
func NewMachine(cat *catalog.Catalog, gateway ports.Gateway, extractor catalog.Extractor, opts ...Option) *Machine {
	if cat == nil {
		cat = catalog.Default()
	}
	m := &Machine{
		catalog:   cat,
		gateway:   gateway,
		extractor: extractor,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Catalog returns the field catalog the Machine walks.
func (m *Machine) Catalog() *catalog.Catalog { return m.catalog }

// Begin positions a fresh session at the first parent field and returns its prompt.
func (m *Machine) Begin(s *domain.Session) *Outcome {
	s.Position = domain.Position{Phase: domain.PhaseParent}
	s.Attempts = 0
	return m.ask(s, m.catalog.Parent[0], false)
}

// Step applies one answer to s.
//
// Rejections are not errors: they come back as an Outcome with Clarification
// set. Errors are reserved for turns that cannot be applied (completed session,
// stale position) and for durable writes that failed, which are wrapped as
// *domain.PersistenceError. After a persistence error the answer stays merged
// in s but the position is unchanged, so the same turn can be replayed.
func (m *Machine) Step(ctx context.Context, s *domain.Session, turn Turn) (*Outcome, error) {
	if s.Phase() == domain.PhaseComplete {
		return nil, domain.ErrSessionComplete
	}
	if err := m.checkPosition(s, turn); err != nil {
		return nil, err
	}
	if s.Parent == nil {
		s.Parent = domain.Fields{}
	}
	if f, ok := m.catalog.MediaFor(turn.LastQuestion); ok {
		return m.sideTurn(ctx, s, f, turn.Message)
	}

	pos := s.Position
	field, ok := m.catalog.Field(pos.Phase, pos.Field)
	if !ok {
		return nil, domain.ErrInvalidPosition
	}
	logger := m.logger.With("session_id", s.ID, "position", pos.Token())

	value, err := field.Validate(ctx, turn.Message, m.env(s))
	if err != nil {
		if !domain.IsValidation(err) {
			return nil, err
		}
		logger.Debug("Answer rejected", "field", field.Name, "err", err)
		return m.reject(ctx, s, field, err), nil
	}
	m.emitAccepted(ctx, s, field)

	switch pos.Phase {
	case domain.PhaseParent:
		return m.acceptParent(ctx, s, field, value)
	case domain.PhaseChildren:
		return m.acceptChild(ctx, s, field, value)
	}
	return nil, domain.ErrInvalidPosition
}

func (m *Machine) env(s *domain.Session) catalog.Env {
	return catalog.Env{
		Now:         m.now(),
		Parent:      s.Parent,
		Extractor:   m.extractor,
		OtherPrizes: s.PrizesExcept(s.Position.Child),
	}
}

func (m *Machine) reject(ctx context.Context, s *domain.Session, field catalog.Field, cause error) *Outcome {
	s.Attempts++
	var reason string
	var verr *domain.ValidationError
	if errors.As(cause, &verr) {
		reason = verr.Reason
	}
	m.emitRejected(ctx, s, field, reason)
	return m.ask(s, field, true)
}
