package catalog

import (
	"context"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

// ClarificationMarker prefixes every clarification prompt so that a re-asked
// question still resolves to the field it clarifies.
const ClarificationMarker = "[Clarification] "

// Extractor resolves free text that cannot be parsed deterministically.
// Both calls return the domain.Sentinel on any failure.
type Extractor interface {
	ResolveDate(ctx context.Context, text string, now time.Time) string
	ExtractList(ctx context.Context, subject, text string) []string
}

// Env is the context a field needs to validate an answer.
type Env struct {
	Now       time.Time
	Parent    domain.Fields
	Extractor Extractor

	// OtherPrizes is the sum of prizes of every other child slot of the same parent.
	OtherPrizes float64
}

// ParseFunc turns raw text into a value, or rejects it with a ValidationError.
type ParseFunc func(ctx context.Context, raw string, env Env) (domain.Value, error)

// Field is one entry of a catalog.
type Field struct {
	Order         int
	Name          string
	Prompt        string
	Clarification string
	Kind          domain.Kind
	Optional      bool

	parse ParseFunc
}

// NewField builds a field with a custom parser.
func NewField(order int, name string, kind domain.Kind, prompt, clarification string, parse ParseFunc) Field {
	return Field{
		Order:         order,
		Name:          name,
		Kind:          kind,
		Prompt:        prompt,
		Clarification: clarification,
		parse:         parse,
	}
}

// Validate parses raw. Any rejection is a *domain.ValidationError.
func (f Field) Validate(ctx context.Context, raw string, env Env) (domain.Value, error) {
	if f.parse == nil {
		return domain.Value{}, domain.Invalid(f.Name, "field has no parser")
	}
	return f.parse(ctx, raw, env)
}

// ClarificationPrompt is the re-ask text emitted after a rejection.
func (f Field) ClarificationPrompt() string {
	return ClarificationMarker + f.Clarification
}

// AsOptional marks the field as skippable.
func (f Field) AsOptional() Field {
	f.Optional = true
	return f
}

// IsMedia reports whether the field is a best-effort upload.
func (f Field) IsMedia() bool { return f.Kind == domain.KindMedia }
