package runtime

import (
	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
)

// ask records field's prompt (or its clarification) as the session's last
// prompt and builds the outcome that shows it.
func (m *Machine) ask(s *domain.Session, field catalog.Field, clarified bool) *Outcome {
	prompt := field.Prompt
	if clarified {
		prompt = field.ClarificationPrompt()
	}
	s.LastPrompt = prompt
	s.UpdatedAt = m.now()
	return m.outcome(s, prompt, clarified)
}

// pending re-emits whatever the session is waiting for.
func (m *Machine) pending(s *domain.Session) *Outcome {
	prompt := s.LastPrompt
	if prompt == "" {
		if f, ok := m.catalog.Field(s.Position.Phase, s.Position.Field); ok {
			prompt = f.Prompt
			if s.Attempts > 0 {
				prompt = f.ClarificationPrompt()
			}
		}
	}
	s.UpdatedAt = m.now()
	return m.outcome(s, prompt, s.Attempts > 0)
}

func (m *Machine) outcome(s *domain.Session, prompt string, clarified bool) *Outcome {
	return &Outcome{
		Prompt:        prompt,
		Clarification: clarified,
		Attempts:      s.Attempts,
		Escalated:     m.maxAttempts > 0 && s.Attempts >= m.maxAttempts,
		Optional:      m.optional(s),
	}
}

// optional lists the media prompts still open once the parent is committed.
func (m *Machine) optional(s *domain.Session) []string {
	if s.Phase() != domain.PhaseChildren {
		return nil
	}
	var out []string
	for _, f := range m.catalog.MediaFields() {
		if _, answered := s.Parent[f.Name]; !answered {
			out = append(out, f.Prompt)
		}
	}
	return out
}

// Pending returns the outcome for the prompt s is waiting on, without changing it.
func (m *Machine) Pending(s *domain.Session) *Outcome {
	if s.Phase() == domain.PhaseComplete {
		return &Outcome{Complete: true}
	}
	snapshot := s.Snapshot()
	return m.pending(snapshot)
}
