package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/internal/runtime"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/extraction"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/session"
)

// Engine is the high-level entry point of the intake library.
// It owns identity checks, per-session serialization and persistence, and
// delegates every conversational decision to the internal state machine.
type Engine struct {
	machine   *runtime.Machine
	sessions  *session.Manager
	gateway   ports.Gateway
	store     ports.DraftStore
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	oracle    ports.Oracle
	extractor catalog.Extractor
	notifier  ports.Notifier
	catalog   *catalog.Catalog

	extractionOpts []extraction.Option
	hooks          domain.LifecycleHooks
	logger         *slog.Logger
	now            func() time.Time
	newID          func() string
	maxAttempts    int
}

var _ ports.Intake = (*Engine)(nil)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithGateway sets the durable store. Defaults to an in-memory gateway.
func WithGateway(g ports.Gateway) Option {
	return func(e *Engine) {
		e.gateway = g
	}
}

// WithDraftStore sets the session state store. Defaults to an in-memory store.
func WithDraftStore(s ports.DraftStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker adds a distributed lock for deployments with several instances.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithLockTTL bounds how long one turn may hold its session lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		e.lockTTL = ttl
	}
}

// WithOracle sets the natural-language capability behind date and list fields.
func WithOracle(o ports.Oracle) Option {
	return func(e *Engine) {
		e.oracle = o
	}
}

// WithExtractionOptions tunes the extraction adapter built around the oracle.
func WithExtractionOptions(opts ...extraction.Option) Option {
	return func(e *Engine) {
		e.extractionOpts = append(e.extractionOpts, opts...)
	}
}

// WithExtractor replaces the oracle-backed extraction adapter entirely.
func WithExtractor(x catalog.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithNotifier receives the completion signal.
func WithNotifier(n ports.Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithCatalog overrides the default event/challenge catalog.
func WithCatalog(c *catalog.Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithMaxAttempts flags answers as escalated after n consecutive rejections
// of the same field. Zero (the default) never escalates.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		e.maxAttempts = n
	}
}

// WithIDGenerator overrides the UUID generator used for sessions and events.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		e.newID = fn
	}
}

// New initializes an Engine. With no options it runs fully in memory and,
// lacking an oracle, only accepts dates already written as YYYY-MM-DD or
// RFC 3339.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logging.NewNop()
	}
	if e.gateway == nil {
		e.gateway = memory.NewGateway()
	}
	if e.store == nil {
		e.store = memory.NewStore()
	}
	if e.catalog == nil {
		e.catalog = catalog.Default()
	}
	if e.maxAttempts < 0 {
		return nil, fmt.Errorf("max attempts must not be negative, got %d", e.maxAttempts)
	}
	if e.extractor == nil {
		xopts := append([]extraction.Option{
			extraction.WithLogger(e.logger),
			extraction.WithLifecycleHooks(e.hooks),
		}, e.extractionOpts...)
		e.extractor = extraction.New(e.oracle, xopts...)
	}

	sessOpts := []session.Option{session.WithLogger(e.logger)}
	if e.locker != nil {
		sessOpts = append(sessOpts, session.WithLocker(e.locker))
	}
	if e.lockTTL > 0 {
		sessOpts = append(sessOpts, session.WithLockTTL(e.lockTTL))
	}
	e.sessions = session.NewManager(e.store, sessOpts...)

	e.machine = runtime.NewMachine(e.catalog, e.gateway, e.extractor,
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithClock(e.now),
		runtime.WithMaxAttempts(e.maxAttempts),
	)
	return e, nil
}

// Start creates a new intake for ownerID: a draft event and its session are
// written to durable storage and the first prompt is returned.
func (e *Engine) Start(ctx context.Context, ownerID string) (*domain.Response, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}

	now := e.now()
	s := domain.NewSession(e.newID(), e.newID(), ownerID, now)
	out := e.machine.Begin(s)

	rec, err := e.record(s)
	if err != nil {
		return nil, err
	}
	event := &domain.Event{
		ID:             s.EventID,
		OwnerID:        ownerID,
		Status:         domain.EventDraft,
		BudgetCurrency: domain.BudgetCurrency,
		Fields:         domain.Fields{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.gateway.CreateDraft(ctx, event, rec); err != nil {
		return nil, domain.Retryable("create draft", err)
	}
	if err := e.sessions.Save(ctx, s); err != nil {
		return nil, domain.Retryable("save session", err)
	}

	e.logger.Info("Intake started", "session_id", s.ID, "event_id", s.EventID)
	if e.hooks.OnSessionStart != nil {
		e.hooks.OnSessionStart(ctx, &domain.SessionEvent{
			EventBase: domain.EventBase{Timestamp: now, Type: domain.EventSessionStart, SessionID: s.ID},
			EventID:   s.EventID,
			OwnerID:   ownerID,
		})
	}
	return e.response(s, out), nil
}

// Advance processes one conversational turn. An empty SessionID starts a new intake.
//
// Turns for the same session are serialized. Validation rejections come back
// as a Response with Clarification set, never as an error.
func (e *Engine) Advance(ctx context.Context, req domain.Request) (*domain.Response, error) {
	if req.OwnerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if req.SessionID == "" {
		return e.Start(ctx, req.OwnerID)
	}

	var (
		resp     *domain.Response
		finished bool
	)
	err := e.sessions.WithLock(ctx, req.SessionID, func(ctx context.Context) error {
		s, err := e.load(ctx, req.SessionID)
		if err != nil {
			return err
		}
		if s.OwnerID != req.OwnerID {
			return domain.ErrForbidden
		}
		logger := e.logger.With("session_id", s.ID, "event_id", s.EventID)

		out, err := e.machine.Step(ctx, s, runtime.Turn{
			Token:        req.Token,
			LastQuestion: req.LastQuestion,
			Message:      req.Message,
		})
		if err != nil {
			if domain.IsRetryable(err) {
				// Keep the merged answer so the retry replays the same write.
				if saveErr := e.store.Save(ctx, s); saveErr != nil {
					logger.Warn("Failed to keep draft after persistence failure", "err", saveErr)
				}
				logger.Error("Turn failed to persist", "err", err)
			}
			return err
		}

		if err := e.store.Save(ctx, s); err != nil {
			return domain.Retryable("save session", err)
		}
		checkpointed := false
		if out.PhaseChanged || out.Committed {
			checkpointed = e.checkpoint(ctx, s)
		}
		if out.Completion != nil {
			e.notify(ctx, out.Completion)
			finished = checkpointed
		}
		resp = e.response(s, out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if finished {
		// The completed session lives on in its checkpoint.
		if err := e.sessions.Delete(ctx, resp.SessionID); err != nil {
			e.logger.Warn("Failed to drop completed draft", "session_id", resp.SessionID, "err", err)
		}
	}
	return resp, nil
}

// Sessions lists the unfinished intakes of ownerID that are still in the
// draft store, most recently updated first.
func (e *Engine) Sessions(ctx context.Context, ownerID string) ([]*domain.Response, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ids, err := e.sessions.List(ctx)
	if err != nil {
		return nil, domain.Retryable("list sessions", err)
	}

	var found []*domain.Session
	for _, id := range ids {
		s, err := e.sessions.Load(ctx, id)
		if errors.Is(err, domain.ErrSessionNotFound) {
			continue
		}
		if err != nil {
			e.logger.Warn("Skipping unreadable draft", "session_id", id, "err", err)
			continue
		}
		if s.OwnerID != ownerID || s.Phase() == domain.PhaseComplete {
			continue
		}
		found = append(found, s)
	}
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].UpdatedAt.After(found[j].UpdatedAt)
	})

	out := make([]*domain.Response, 0, len(found))
	for _, s := range found {
		out = append(out, e.response(s, e.machine.Pending(s)))
	}
	return out, nil
}

// Resume returns the pending prompt of a session without advancing it.
func (e *Engine) Resume(ctx context.Context, ownerID, sessionID string) (*domain.Response, error) {
	s, err := e.Session(ctx, ownerID, sessionID)
	if err != nil {
		return nil, err
	}
	return e.response(s, e.machine.Pending(s)), nil
}

// Session returns a copy of the session state, for its owner only.
func (e *Engine) Session(ctx context.Context, ownerID, sessionID string) (*domain.Session, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	var s *domain.Session
	err := e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		s, err = e.load(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return s.Snapshot(), nil
}

// Event returns the committed event with its challenges, for its owner only.
func (e *Engine) Event(ctx context.Context, ownerID, eventID string) (*domain.Event, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthenticated
	}
	ev, err := e.gateway.LoadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.OwnerID != ownerID {
		return nil, domain.ErrForbidden
	}
	return ev, nil
}

// Catalog returns the field catalog in use.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// load reads the draft, falling back to the last durable checkpoint when the
// draft store lost it (restart, eviction).
func (e *Engine) load(ctx context.Context, sessionID string) (*domain.Session, error) {
	s, err := e.store.Load(ctx, sessionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.Retryable("load session", err)
	}

	rec, err := e.gateway.LoadSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, err
		}
		return nil, domain.Retryable("load checkpoint", err)
	}
	restored := &domain.Session{}
	if err := json.Unmarshal(rec.Data, restored); err != nil || restored.ID == "" {
		e.logger.Warn("Unreadable session checkpoint", "session_id", sessionID, "err", err)
		return nil, domain.ErrSessionNotFound
	}
	e.logger.Info("Session restored from checkpoint", "session_id", sessionID, "phase", restored.Phase())
	return restored, nil
}

// checkpoint records the session after a phase boundary or a committed
// challenge. Failures are logged: the committed event rows are already durable.
func (e *Engine) checkpoint(ctx context.Context, s *domain.Session) bool {
	rec, err := e.record(s)
	if err == nil {
		err = e.gateway.SaveSession(ctx, rec)
	}
	if err != nil {
		e.logger.Warn("Failed to checkpoint session", "session_id", s.ID, "phase", s.Phase(), "err", err)
		return false
	}
	return true
}

func (e *Engine) notify(ctx context.Context, c *domain.CompletionEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.IntakeCompleted(ctx, c); err != nil {
		e.logger.Error("Failed to publish completion", "session_id", c.SessionID, "event_id", c.EventID, "err", err)
	}
}

func (e *Engine) record(s *domain.Session) (*domain.SessionRecord, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	return &domain.SessionRecord{
		ID:        s.ID,
		EventID:   s.EventID,
		OwnerID:   s.OwnerID,
		Phase:     s.Phase(),
		Data:      data,
		UpdatedAt: e.now(),
	}, nil
}

func (e *Engine) response(s *domain.Session, out *runtime.Outcome) *domain.Response {
	return &domain.Response{
		SessionID:     s.ID,
		EventID:       s.EventID,
		Phase:         s.Phase(),
		Token:         s.Position.Token(),
		Prompt:        out.Prompt,
		Clarification: out.Clarification,
		Attempts:      out.Attempts,
		Escalated:     out.Escalated,
		Optional:      out.Optional,
		Complete:      out.Complete,
	}
}
