package runtime

import (
	"context"

	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
)

func (m *Machine) base(s *domain.Session, t domain.EventType) domain.EventBase {
	return domain.EventBase{Timestamp: m.now(), Type: t, SessionID: s.ID}
}

func (m *Machine) emitAccepted(ctx context.Context, s *domain.Session, f catalog.Field) {
	if m.hooks.OnFieldAccepted == nil {
		return
	}
	m.hooks.OnFieldAccepted(ctx, &domain.FieldEvent{
		EventBase: m.base(s, domain.EventFieldAccepted),
		Phase:     s.Phase(),
		Field:     f.Name,
		Child:     s.Cursor,
	})
}

func (m *Machine) emitRejected(ctx context.Context, s *domain.Session, f catalog.Field, reason string) {
	if m.hooks.OnFieldRejected == nil {
		return
	}
	m.hooks.OnFieldRejected(ctx, &domain.FieldEvent{
		EventBase: m.base(s, domain.EventFieldRejected),
		Phase:     s.Phase(),
		Field:     f.Name,
		Child:     s.Cursor,
		Attempts:  s.Attempts,
		Reason:    reason,
	})
}

func (m *Machine) emitPhaseChange(ctx context.Context, s *domain.Session, from, to domain.Phase) {
	m.logger.Info("Phase changed", "session_id", s.ID, "event_id", s.EventID, "from", from, "to", to)
	if m.hooks.OnPhaseChange == nil {
		return
	}
	m.hooks.OnPhaseChange(ctx, &domain.PhaseEvent{
		EventBase: m.base(s, domain.EventPhaseChange),
		From:      from,
		To:        to,
	})
}

func (m *Machine) emitChildCommitted(ctx context.Context, s *domain.Session, c *domain.ChildDraft) {
	if m.hooks.OnChildCommitted == nil {
		return
	}
	prize, _ := c.Fields.Amount(domain.FieldPrizeAmount)
	m.hooks.OnChildCommitted(ctx, &domain.ChildEvent{
		EventBase:  m.base(s, domain.EventChildCommitted),
		EventID:    s.EventID,
		OrderIndex: c.OrderIndex,
		Prize:      prize,
	})
}

func (m *Machine) emitComplete(ctx context.Context, e *domain.CompletionEvent) {
	if m.hooks.OnComplete != nil {
		m.hooks.OnComplete(ctx, e)
	}
}
