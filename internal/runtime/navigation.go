package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
)

// checkPosition rejects answers to a prompt the session already moved past.
// The stored Position is authoritative. A client token must match it exactly;
// without a token the question text, when it names a catalog field, must name
// the pending one.
func (m *Machine) checkPosition(s *domain.Session, turn Turn) error {
	if turn.Token != "" {
		p, err := domain.ParsePosition(turn.Token)
		if err != nil {
			return err
		}
		if p != s.Position {
			return fmt.Errorf("%w: answered %s, pending %s", domain.ErrStalePosition, p, s.Position)
		}
		return nil
	}
	if _, ok := m.catalog.MediaFor(turn.LastQuestion); ok {
		return nil
	}
	match, ok := m.catalog.Resolve(turn.LastQuestion, len(s.Children) > 0)
	if !ok {
		return nil
	}
	if match.Phase != s.Position.Phase || match.Field != s.Position.Field {
		return fmt.Errorf("%w: answered %s field %d, pending %s", domain.ErrStalePosition, match.Phase, match.Field, s.Position)
	}
	return nil
}

// sideTurn records a logo or banner answer. It commits additively and never
// moves the position; the pending prompt is asked again.
func (m *Machine) sideTurn(ctx context.Context, s *domain.Session, f catalog.Field, message string) (*Outcome, error) {
	value, err := f.Validate(ctx, message, m.env(s))
	if err != nil {
		value = domain.SkippedMedia()
	}
	update := domain.Fields{f.Name: value}
	s.Parent.Merge(update)

	if err := m.gateway.CommitParentFields(ctx, s.EventID, update); err != nil {
		return nil, domain.Retryable("commit "+f.Name, err)
	}
	m.emitAccepted(ctx, s, f)
	return m.pending(s), nil
}

func (m *Machine) acceptParent(ctx context.Context, s *domain.Session, field catalog.Field, value domain.Value) (*Outcome, error) {
	s.Parent.Merge(domain.Fields{field.Name: value})
	s.Attempts = 0

	if s.Position.Field < m.catalog.LastRequiredParent() {
		s.Position.Field++
		next, _ := m.catalog.Field(domain.PhaseParent, s.Position.Field)
		return m.ask(s, next, false), nil
	}

	if err := m.gateway.CommitParentFields(ctx, s.EventID, s.Parent.Clone()); err != nil {
		return nil, domain.Retryable("commit parent", err)
	}
	s.Children = []domain.ChildDraft{{OrderIndex: 0, Fields: domain.Fields{}}}
	s.Cursor = 0
	m.transition(ctx, s, domain.Position{Phase: domain.PhaseChildren})

	out := m.ask(s, m.catalog.Child[0], false)
	out.PhaseChanged = true
	return out, nil
}

func (m *Machine) acceptChild(ctx context.Context, s *domain.Session, field catalog.Field, value domain.Value) (*Outcome, error) {
	cur := s.Current()
	if cur == nil {
		return nil, fmt.Errorf("%w: no child slot at cursor %d", domain.ErrInvalidPosition, s.Cursor)
	}
	if cur.Fields == nil {
		cur.Fields = domain.Fields{}
	}
	cur.Fields.Merge(domain.Fields{field.Name: value})
	s.Attempts = 0

	if s.Position.Field < m.catalog.LastChild() {
		s.Position.Field++
		next, _ := m.catalog.Field(domain.PhaseChildren, s.Position.Field)
		return m.ask(s, next, false), nil
	}

	err := m.gateway.UpsertChild(ctx, s.EventID, cur.OrderIndex, cur.Fields.Clone())
	if errors.Is(err, domain.ErrBudgetExceeded) {
		return m.budgetConflict(ctx, s), nil
	}
	if err != nil {
		return nil, domain.Retryable("upsert challenge", err)
	}
	m.emitChildCommitted(ctx, s, cur)

	declared, _ := s.Parent.Count(domain.FieldChallengeCount)
	if s.Cursor+1 >= declared {
		m.transition(ctx, s, domain.Position{Phase: domain.PhaseComplete})
		s.LastPrompt = ""
		s.UpdatedAt = m.now()

		completion := m.completion(s)
		m.emitComplete(ctx, completion)
		return &Outcome{Complete: true, PhaseChanged: true, Committed: true, Completion: completion}, nil
	}

	s.Cursor++
	s.Children = append(s.Children, domain.ChildDraft{OrderIndex: s.Cursor, Fields: domain.Fields{}})
	s.Position = domain.Position{Phase: domain.PhaseChildren, Child: s.Cursor}
	out := m.ask(s, m.catalog.Child[0], false)
	out.Committed = true
	return out, nil
}

// budgetConflict sends the slot back to its prize after the durable budget
// guard refused the upsert.
func (m *Machine) budgetConflict(ctx context.Context, s *domain.Session) *Outcome {
	idx := 0
	for i, f := range m.catalog.Child {
		if f.Name == domain.FieldPrizeAmount {
			idx = i
			break
		}
	}
	s.Position.Field = idx
	s.Attempts++
	field := m.catalog.Child[idx]
	m.logger.Warn("Challenge refused by budget guard", "session_id", s.ID, "event_id", s.EventID, "child", s.Cursor)
	m.emitRejected(ctx, s, field, domain.ErrBudgetExceeded.Error())
	return m.ask(s, field, true)
}

func (m *Machine) transition(ctx context.Context, s *domain.Session, to domain.Position) {
	from := s.Phase()
	s.Position = to
	if from != to.Phase {
		m.emitPhaseChange(ctx, s, from, to.Phase)
	}
}

func (m *Machine) completion(s *domain.Session) *domain.CompletionEvent {
	budget, _ := s.Parent.Amount(domain.FieldTotalBudget)
	var prizes float64
	for _, c := range s.Children {
		if p, ok := c.Fields.Amount(domain.FieldPrizeAmount); ok {
			prizes += p
		}
	}
	return &domain.CompletionEvent{
		EventBase:      domain.EventBase{Timestamp: m.now(), Type: domain.EventComplete, SessionID: s.ID},
		EventID:        s.EventID,
		OwnerID:        s.OwnerID,
		TotalBudget:    budget,
		TotalPrizes:    prizes,
		ChallengeCount: len(s.Children),
		Currency:       domain.BudgetCurrency,
	}
}
