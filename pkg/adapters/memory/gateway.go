package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

// Gateway implements ports.Gateway in memory, for tests and single-process use.
type Gateway struct {
	mu         sync.RWMutex
	events     map[string]*domain.Event
	challenges map[string]map[int]domain.Challenge
	sessions   map[string]*domain.SessionRecord
	now        func() time.Time
}

// NewGateway creates an empty gateway.
func NewGateway() *Gateway {
	return &Gateway{
		events:     make(map[string]*domain.Event),
		challenges: make(map[string]map[int]domain.Challenge),
		sessions:   make(map[string]*domain.SessionRecord),
		now:        time.Now,
	}
}

func (g *Gateway) CreateDraft(ctx context.Context, event *domain.Event, session *domain.SessionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev := *event
	ev.Fields = event.Fields.Provided()
	ev.Challenges = nil
	if ev.Status == "" {
		ev.Status = domain.EventDraft
	}
	if ev.BudgetCurrency == "" {
		ev.BudgetCurrency = domain.BudgetCurrency
	}
	g.events[ev.ID] = &ev
	g.challenges[ev.ID] = make(map[int]domain.Challenge)
	g.sessions[session.ID] = cloneRecord(session)
	return nil
}

func (g *Gateway) CommitParentFields(ctx context.Context, eventID string, fields domain.Fields) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev, ok := g.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	ev.Fields.Merge(fields.Provided())
	ev.UpdatedAt = g.now()
	return nil
}

func (g *Gateway) UpsertChild(ctx context.Context, eventID string, orderIndex int, fields domain.Fields) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ev, ok := g.events[eventID]
	if !ok {
		return domain.ErrEventNotFound
	}
	slots := g.challenges[eventID]

	prize, _ := fields.Amount(domain.FieldPrizeAmount)
	if budget, ok := ev.Fields.Amount(domain.FieldTotalBudget); ok {
		var others float64
		for idx, c := range slots {
			if idx == orderIndex {
				continue
			}
			p, _ := c.Fields.Amount(domain.FieldPrizeAmount)
			others += p
		}
		if others+prize > budget {
			return domain.ErrBudgetExceeded
		}
	}

	slots[orderIndex] = domain.Challenge{
		EventID:       eventID,
		OrderIndex:    orderIndex,
		PrizeCurrency: domain.BudgetCurrency,
		Fields:        fields.Provided(),
		UpdatedAt:     g.now(),
	}
	return nil
}

func (g *Gateway) SaveSession(ctx context.Context, session *domain.SessionRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[session.ID] = cloneRecord(session)
	return nil
}

func (g *Gateway) LoadSession(ctx context.Context, sessionID string) (*domain.SessionRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	rec, ok := g.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneRecord(rec), nil
}

func (g *Gateway) LoadEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ev, ok := g.events[eventID]
	if !ok {
		return nil, domain.ErrEventNotFound
	}
	out := *ev
	out.Fields = ev.Fields.Clone()
	out.Challenges = make([]domain.Challenge, 0, len(g.challenges[eventID]))
	for _, c := range g.challenges[eventID] {
		c.Fields = c.Fields.Clone()
		out.Challenges = append(out.Challenges, c)
	}
	slices.SortFunc(out.Challenges, func(a, b domain.Challenge) int {
		return a.OrderIndex - b.OrderIndex
	})
	return &out, nil
}

func cloneRecord(r *domain.SessionRecord) *domain.SessionRecord {
	out := *r
	out.Data = slices.Clone(r.Data)
	return &out
}
