// Package testutils holds fixtures shared by the engine and state machine tests.
package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
)

// Now is the reference clock of every fixture: Monday 2025-08-25 12:00 UTC.
var Now = time.Date(2025, 8, 25, 12, 0, 0, 0, time.UTC)

// Clock returns Now.
func Clock() time.Time { return Now }

// ParentAnswers walks the parent phase with valid answers, in catalog order.
var ParentAnswers = []string{
	"DevHack 2025",
	"Acme Labs",
	"september 1st",
	"september 5th",
	"september 20th",
	"25k",
	"2",
}

// ChildAnswers fills one challenge with valid answers, in catalog order.
func ChildAnswers(title, prize string) []string {
	return []string{
		title,
		"Build something useful",
		prize,
		"Google and Microsoft",
		"Innovation, Impact, UX, Execution",
		"none",
	}
}

// StubExtractor resolves answers from fixed tables. Unknown text resolves to
// the sentinel, like the real adapter does on any failure.
type StubExtractor struct {
	mu    sync.Mutex
	Dates map[string]string
	Lists map[string][]string
	Calls int
}

// NewStubExtractor knows the dates and lists used by ParentAnswers and ChildAnswers.
func NewStubExtractor() *StubExtractor {
	return &StubExtractor{
		Dates: map[string]string{
			"september 1st":  "2025-09-01T00:00:00Z",
			"september 5th":  "2025-09-05T00:00:00Z",
			"september 20th": "2025-09-20T00:00:00Z",
			"august 1st":     "2025-08-01T00:00:00Z",
			"today":          "2025-08-25T00:00:00Z",
		},
		Lists: map[string][]string{
			"Google and Microsoft": {"Google", "Microsoft"},
			"Hosted by ACME Corp":  {"ACME Corp"},
			"Twilio API":           {"Twilio API"},
		},
	}
}

func (s *StubExtractor) ResolveDate(_ context.Context, text string, _ time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if d, ok := s.Dates[text]; ok {
		return d
	}
	return domain.Sentinel
}

func (s *StubExtractor) ExtractList(_ context.Context, _ string, text string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	if l, ok := s.Lists[text]; ok {
		return append([]string(nil), l...)
	}
	return []string{domain.Sentinel}
}

// ErrInjected is returned by FlakyGateway while failing.
var ErrInjected = errors.New("injected storage failure")

// FlakyGateway wraps a Gateway and fails writes on demand.
type FlakyGateway struct {
	ports.Gateway

	mu          sync.Mutex
	failCommit  int
	failUpsert  int
	failSession int
	Upserts     int
}

// FailCommits makes the next n CommitParentFields calls fail.
func (g *FlakyGateway) FailCommits(n int) { g.mu.Lock(); g.failCommit = n; g.mu.Unlock() }

// FailUpserts makes the next n UpsertChild calls fail.
func (g *FlakyGateway) FailUpserts(n int) { g.mu.Lock(); g.failUpsert = n; g.mu.Unlock() }

// FailSessions makes the next n SaveSession calls fail.
func (g *FlakyGateway) FailSessions(n int) { g.mu.Lock(); g.failSession = n; g.mu.Unlock() }

func take(n *int) bool {
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (g *FlakyGateway) CommitParentFields(ctx context.Context, eventID string, fields domain.Fields) error {
	g.mu.Lock()
	fail := take(&g.failCommit)
	g.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return g.Gateway.CommitParentFields(ctx, eventID, fields)
}

func (g *FlakyGateway) UpsertChild(ctx context.Context, eventID string, orderIndex int, fields domain.Fields) error {
	g.mu.Lock()
	fail := take(&g.failUpsert)
	g.Upserts++
	g.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return g.Gateway.UpsertChild(ctx, eventID, orderIndex, fields)
}

func (g *FlakyGateway) SaveSession(ctx context.Context, rec *domain.SessionRecord) error {
	g.mu.Lock()
	fail := take(&g.failSession)
	g.mu.Unlock()
	if fail {
		return ErrInjected
	}
	return g.Gateway.SaveSession(ctx, rec)
}
