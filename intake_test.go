package intake_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/testutils"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/domain"
)

const owner = "organizer-1"

type recordingNotifier struct {
	mu     sync.Mutex
	events []*domain.CompletionEvent
	err    error
}

func (n *recordingNotifier) IntakeCompleted(_ context.Context, e *domain.CompletionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return n.err
}

type harness struct {
	engine   *intake.Engine
	gateway  *testutils.FlakyGateway
	store    *memory.Store
	notifier *recordingNotifier
	logs     *bytes.Buffer
}

func newHarness(t *testing.T, opts ...intake.Option) *harness {
	t.Helper()
	h := &harness{
		gateway:  &testutils.FlakyGateway{Gateway: memory.NewGateway()},
		store:    memory.NewStore(),
		notifier: &recordingNotifier{},
		logs:     &bytes.Buffer{},
	}
	logger := slog.New(slog.NewTextHandler(h.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	base := []intake.Option{
		intake.WithGateway(h.gateway),
		intake.WithDraftStore(h.store),
		intake.WithExtractor(testutils.NewStubExtractor()),
		intake.WithNotifier(h.notifier),
		intake.WithClock(testutils.Clock),
		intake.WithLogger(logger),
	}
	eng, err := intake.New(append(base, opts...)...)
	require.NoError(t, err)
	h.engine = eng
	return h
}

func (h *harness) send(t *testing.T, resp *domain.Response, msg string) (*domain.Response, error) {
	t.Helper()
	return h.engine.Advance(context.Background(), domain.Request{
		SessionID: resp.SessionID,
		OwnerID:   owner,
		Token:     resp.Token,
		Message:   msg,
	})
}

func (h *harness) walk(t *testing.T, resp *domain.Response, msgs ...string) *domain.Response {
	t.Helper()
	for _, msg := range msgs {
		next, err := h.send(t, resp, msg)
		require.NoError(t, err)
		require.False(t, next.Clarification, "answer %q was rejected: %s", msg, next.Prompt)
		resp = next
	}
	return resp
}

func (h *harness) start(t *testing.T) *domain.Response {
	t.Helper()
	resp, err := h.engine.Start(context.Background(), owner)
	require.NoError(t, err)
	return resp
}

func TestStart(t *testing.T) {
	var started []*domain.SessionEvent
	h := newHarness(t, intake.WithLifecycleHooks(domain.LifecycleHooks{
		OnSessionStart: func(_ context.Context, e *domain.SessionEvent) { started = append(started, e) },
	}))

	resp := h.start(t)
	assert.Equal(t, domain.PhaseParent, resp.Phase)
	assert.Equal(t, "p.0", resp.Token)
	assert.Equal(t, h.engine.Catalog().Parent[0].Prompt, resp.Prompt)
	assert.NotEqual(t, resp.SessionID, resp.EventID)

	ev, err := h.gateway.LoadEvent(context.Background(), resp.EventID)
	require.NoError(t, err)
	assert.Equal(t, domain.EventDraft, ev.Status)
	assert.Equal(t, owner, ev.OwnerID)

	rec, err := h.gateway.LoadSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.EventID, rec.EventID)

	require.Len(t, started, 1)
	assert.Equal(t, resp.SessionID, started[0].SessionID)
}

func TestAdvance_EmptySessionStarts(t *testing.T) {
	h := newHarness(t)
	resp, err := h.engine.Advance(context.Background(), domain.Request{OwnerID: owner, Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "p.0", resp.Token)
	assert.NotEmpty(t, resp.SessionID)
}

func TestIdentity(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)
	ctx := context.Background()

	_, err := h.engine.Advance(ctx, domain.Request{SessionID: resp.SessionID, Message: "DevHack"})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = h.engine.Advance(ctx, domain.Request{SessionID: resp.SessionID, OwnerID: "intruder", Message: "DevHack"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.engine.Session(ctx, "intruder", resp.SessionID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.engine.Event(ctx, "intruder", resp.EventID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.engine.Event(ctx, "", resp.EventID)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	s, err := h.engine.Session(ctx, owner, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.Position{Phase: domain.PhaseParent}, s.Position, "rejected callers never move the session")
}

func TestUnknownSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Advance(context.Background(), domain.Request{SessionID: "missing", OwnerID: owner, Message: "x"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestFullIntake(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	assert.Equal(t, domain.PhaseChildren, resp.Phase)
	assert.Equal(t, "c.0.0", resp.Token)

	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	assert.Equal(t, "c.1.0", resp.Token)
	resp = h.walk(t, resp, testutils.ChildAnswers("Climate", "7.5k")...)

	assert.True(t, resp.Complete)
	assert.Equal(t, domain.PhaseComplete, resp.Phase)
	assert.Empty(t, resp.Prompt)

	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, resp.EventID, h.notifier.events[0].EventID)
	assert.Equal(t, 12500.0, h.notifier.events[0].TotalPrizes)

	ev, err := h.engine.Event(context.Background(), owner, resp.EventID)
	require.NoError(t, err)
	assert.Equal(t, "DevHack 2025", ev.Fields.Text(domain.FieldTitle))
	require.Len(t, ev.Challenges, 2)
	assert.Equal(t, "Climate", ev.Challenges[1].Fields.Text(domain.FieldTitle))

	_, err = h.send(t, resp, "one more")
	assert.ErrorIs(t, err, domain.ErrSessionComplete)
	assert.Len(t, h.notifier.events, 1, "completion is signalled once")

	pending, err := h.engine.Resume(context.Background(), owner, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, pending.Complete)
}

func TestNotifierFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.notifier.err = errors.New("bus unavailable")

	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	resp = h.walk(t, resp, testutils.ChildAnswers("Climate", "5000")...)

	assert.True(t, resp.Complete)
	assert.Contains(t, h.logs.String(), "Failed to publish completion")
}

func TestRetryableTurn(t *testing.T) {
	h := newHarness(t)
	n := len(testutils.ParentAnswers)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers[:n-1]...)

	h.gateway.FailCommits(1)
	_, err := h.send(t, resp, testutils.ParentAnswers[n-1])
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.ErrorIs(t, err, testutils.ErrInjected)

	s, err := h.engine.Session(context.Background(), owner, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseParent, s.Phase(), "position does not advance")

	next, err := h.send(t, resp, testutils.ParentAnswers[n-1])
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseChildren, next.Phase)
}

func TestCheckpointOnPhaseChange(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)

	rec, err := h.gateway.LoadSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseChildren, rec.Phase)
	assert.NotEmpty(t, rec.Data)
}

func TestCheckpointFailureIsLogged(t *testing.T) {
	h := newHarness(t)
	h.gateway.FailSessions(1)

	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	assert.Equal(t, domain.PhaseChildren, resp.Phase)
	assert.Contains(t, h.logs.String(), "Failed to checkpoint session")
}

func TestRestoreFromCheckpoint(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)

	// Simulate a restart that lost the draft store.
	require.NoError(t, h.store.Delete(context.Background(), resp.SessionID))

	pending, err := h.engine.Resume(context.Background(), owner, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "c.0.0", pending.Token)
	assert.Equal(t, h.engine.Catalog().Child[0].Prompt, pending.Prompt)

	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	resp = h.walk(t, resp, testutils.ChildAnswers("Climate", "5000")...)
	assert.True(t, resp.Complete)
}

func TestRestoreAfterCommittedChallenge(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	require.Equal(t, "c.1.0", resp.Token)

	rec, err := h.gateway.LoadSession(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseChildren, rec.Phase)

	require.NoError(t, h.store.Delete(context.Background(), resp.SessionID))

	pending, err := h.engine.Resume(context.Background(), owner, resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "c.1.0", pending.Token, "a stored challenge is never asked again")

	resp = h.walk(t, pending, testutils.ChildAnswers("Climate", "5000")...)
	assert.True(t, resp.Complete)

	ev, err := h.engine.Event(context.Background(), owner, resp.EventID)
	require.NoError(t, err)
	require.Len(t, ev.Challenges, 2)
	assert.Equal(t, "AI Agents", ev.Challenges[0].Fields.Text(domain.FieldTitle))
}

func TestCompletionDropsDraft(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	resp = h.walk(t, resp, testutils.ChildAnswers("Climate", "5000")...)
	require.True(t, resp.Complete)

	_, err := h.store.Load(context.Background(), resp.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	s, err := h.engine.Session(context.Background(), owner, resp.SessionID)
	require.NoError(t, err, "the checkpoint still answers for the session")
	assert.Equal(t, domain.PhaseComplete, s.Phase())
}

func TestCompletionKeepsDraftWithoutCheckpoint(t *testing.T) {
	h := newHarness(t)
	resp := h.walk(t, h.start(t), testutils.ParentAnswers...)
	resp = h.walk(t, resp, testutils.ChildAnswers("AI Agents", "5000")...)
	last := testutils.ChildAnswers("Climate", "5000")
	resp = h.walk(t, resp, last[:len(last)-1]...)

	h.gateway.FailSessions(1)
	resp = h.walk(t, resp, last[len(last)-1])
	require.True(t, resp.Complete)

	s, err := h.store.Load(context.Background(), resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, s.Phase())
}

func TestSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.start(t)
	second := h.walk(t, h.start(t), "DevHack 2025")
	_, err := h.engine.Start(ctx, "someone-else")
	require.NoError(t, err)

	done := h.walk(t, h.start(t), testutils.ParentAnswers...)
	done = h.walk(t, done, testutils.ChildAnswers("AI Agents", "5000")...)
	done = h.walk(t, done, testutils.ChildAnswers("Climate", "5000")...)
	require.True(t, done.Complete)

	list, err := h.engine.Sessions(ctx, owner)
	require.NoError(t, err)
	ids := []string{}
	for _, r := range list {
		ids = append(ids, r.SessionID)
	}
	assert.ElementsMatch(t, []string{first.SessionID, second.SessionID}, ids)
	for _, r := range list {
		if r.SessionID == second.SessionID {
			assert.Equal(t, "p.1", r.Token)
			assert.Equal(t, second.Prompt, r.Prompt)
		}
	}

	_, err = h.engine.Sessions(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	h := newHarness(t)
	resp := h.start(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.send(t, resp, "DevHack 2025")
		}()
	}
	wg.Wait()

	var ok, stale int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrStalePosition):
			stale++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, stale)
}

func TestEscalation(t *testing.T) {
	h := newHarness(t, intake.WithMaxAttempts(2))
	resp := h.walk(t, h.start(t), testutils.ParentAnswers[:5]...)

	resp, err := h.send(t, resp, "a lot")
	require.NoError(t, err)
	assert.True(t, resp.Clarification)
	assert.False(t, resp.Escalated)

	resp, err = h.send(t, resp, "10")
	require.NoError(t, err)
	assert.True(t, resp.Escalated)
	assert.Equal(t, 2, resp.Attempts)
}

func TestNew_RejectsNegativeMaxAttempts(t *testing.T) {
	_, err := intake.New(intake.WithMaxAttempts(-1))
	assert.Error(t, err)
}
