package catalog

import (
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/domain"
)

// Catalog is the pair of ordered field tables an intake walks through.
type Catalog struct {
	Parent []Field
	Child  []Field
}

// Default returns the event/challenge catalog.
func Default() *Catalog {
	return &Catalog{Parent: parentFields(), Child: childFields()}
}

func parentFields() []Field {
	return []Field{
		NewField(0, domain.FieldTitle, domain.KindText,
			"What is the title of the hackathon?",
			"The title can't be empty or a placeholder like \"TBD\". What is the title of the hackathon?",
			TextParser(domain.FieldTitle)),
		NewField(1, domain.FieldOrganization, domain.KindText,
			"What is the organization of the hackathon?",
			"Please give the name of the organizing company or group. What is the organization of the hackathon?",
			TextParser(domain.FieldOrganization)),
		NewField(2, domain.FieldRegistrationDate, domain.KindDate,
			"When does registration open?",
			"I need a date from today onwards, like \"next Monday\" or \"2025-09-01\". When does registration open?",
			DateParser(domain.FieldRegistrationDate, startOfToday)),
		NewField(3, domain.FieldHackingStart, domain.KindDate,
			"When does the hacking period start?",
			"Hacking has to start on or after the registration date. When does the hacking period start?",
			DateParser(domain.FieldHackingStart, after(domain.FieldRegistrationDate, "the registration date"))),
		NewField(4, domain.FieldSubmissionDeadline, domain.KindDate,
			"When is the submission deadline?",
			"The deadline has to be on or after the hacking start. When is the submission deadline?",
			DateParser(domain.FieldSubmissionDeadline, after(domain.FieldHackingStart, "the hacking start"))),
		NewField(5, domain.FieldTotalBudget, domain.KindMoney,
			"What is the total prize budget in USDC? (minimum 20,000)",
			"The total budget must be an amount of at least 20,000 USDC, like \"25k\" or \"$30,000\". What is the total prize budget?",
			MoneyParser(domain.FieldTotalBudget, domain.MinTotalBudget)),
		NewField(6, domain.FieldChallengeCount, domain.KindCount,
			"How many challenges would you like to create?",
			"You need at least 2 challenges. How many challenges would you like to create?",
			CountParser(domain.FieldChallengeCount, domain.MinChildCount)),
		NewField(7, domain.FieldLogo, domain.KindMedia,
			"Upload a logo for the hackathon, or type \"skip\".",
			"Send the logo URL, or type \"skip\".",
			MediaParser(domain.FieldLogo)).AsOptional(),
		NewField(8, domain.FieldBanner, domain.KindMedia,
			"Upload a banner for the hackathon, or type \"skip\".",
			"Send the banner URL, or type \"skip\".",
			MediaParser(domain.FieldBanner)).AsOptional(),
	}
}

func childFields() []Field {
	return []Field{
		NewField(0, domain.FieldTitle, domain.KindText,
			"What is the title of this challenge?",
			"The challenge title can't be empty. What is the title of this challenge?",
			TextParser(domain.FieldTitle)),
		NewField(1, domain.FieldDescription, domain.KindText,
			"Describe this challenge.",
			"The description can't be empty. Describe this challenge.",
			TextParser(domain.FieldDescription)),
		NewField(2, domain.FieldPrizeAmount, domain.KindMoney,
			"What is the prize amount for this challenge in USDC?",
			"The prize must be greater than zero and fit within the remaining budget. What is the prize amount for this challenge?",
			PrizeParser(domain.FieldPrizeAmount)),
		NewField(3, domain.FieldSponsors, domain.KindExtractedList,
			"Who sponsors this challenge? (type \"none\" if nobody does)",
			"I couldn't make out any sponsor names. Who sponsors this challenge? (type \"none\" if nobody does)",
			ExtractedListParser(domain.FieldSponsors)).AsOptional(),
		NewField(4, domain.FieldJudgingCriteria, domain.KindStringList,
			"List at least 4 judging criteria for this challenge, separated by commas or new lines.",
			"I need at least 4 different judging criteria. List them separated by commas or new lines.",
			StringListParser(domain.FieldJudgingCriteria, domain.MinJudgingCriteria)),
		NewField(5, domain.FieldResources, domain.KindExtractedList,
			"Which resources, APIs or links should participants use? (type \"none\" to skip)",
			"I couldn't make out any resources. Which resources, APIs or links should participants use? (type \"none\" to skip)",
			ExtractedListParser(domain.FieldResources)).AsOptional(),
	}
}

// startOfToday is the floor for the registration date. Extracted dates carry
// no time of day and resolve to midnight UTC, so "today" must pass even though
// midnight is already behind now.
func startOfToday(env Env) (time.Time, string) {
	now := env.Now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), "today"
}

func after(name, label string) func(Env) (time.Time, string) {
	return func(env Env) (time.Time, string) {
		if t, ok := env.Parent.Time(name); ok {
			return t, label
		}
		return startOfToday(env)
	}
}

// LastRequiredParent is the index of the parent field whose acceptance ends the parent phase.
func (c *Catalog) LastRequiredParent() int {
	last := 0
	for i, f := range c.Parent {
		if !f.IsMedia() {
			last = i
		}
	}
	return last
}

// LastChild is the index of the field that closes a child slot.
func (c *Catalog) LastChild() int { return len(c.Child) - 1 }

// Field returns the field at index in phase.
func (c *Catalog) Field(phase domain.Phase, index int) (Field, bool) {
	fields := c.Parent
	if phase == domain.PhaseChildren {
		fields = c.Child
	}
	if index < 0 || index >= len(fields) {
		return Field{}, false
	}
	return fields[index], true
}

// MediaFields returns the best-effort upload fields.
func (c *Catalog) MediaFields() []Field {
	var out []Field
	for _, f := range c.Parent {
		if f.IsMedia() {
			out = append(out, f)
		}
	}
	return out
}

// Match is the result of resolving a question text.
type Match struct {
	Phase         domain.Phase
	Field         int
	Clarification bool
}

// Resolve maps the text of the last question back to a field.
//
// The parent catalog applies while no child draft exists or when the text
// only matches a parent prompt. When the text matches both catalogs the child
// interpretation wins once children exist. Without a match, ok is false and
// field 0 of the inferred phase is returned.
func (c *Catalog) Resolve(question string, haveChildren bool) (m Match, ok bool) {
	q, clarified := stripMarker(question)

	parent, inParent := find(c.Parent, q)
	child, inChild := find(c.Child, q)

	switch {
	case inChild && (haveChildren || !inParent):
		return Match{Phase: domain.PhaseChildren, Field: child, Clarification: clarified}, true
	case inParent:
		return Match{Phase: domain.PhaseParent, Field: parent, Clarification: clarified}, true
	case haveChildren:
		return Match{Phase: domain.PhaseChildren}, false
	}
	return Match{Phase: domain.PhaseParent}, false
}

// MediaFor returns the media field whose prompt is question, if any.
func (c *Catalog) MediaFor(question string) (Field, bool) {
	q, _ := stripMarker(question)
	for _, f := range c.MediaFields() {
		if normalize(f.Prompt) == q || normalize(f.Clarification) == q {
			return f, true
		}
	}
	return Field{}, false
}

func find(fields []Field, q string) (int, bool) {
	if q == "" {
		return 0, false
	}
	for i, f := range fields {
		if normalize(f.Prompt) == q || normalize(f.Clarification) == q {
			return i, true
		}
	}
	return 0, false
}

func stripMarker(question string) (string, bool) {
	q := strings.TrimSpace(question)
	marker := strings.TrimSpace(ClarificationMarker)
	if strings.HasPrefix(q, marker) {
		return normalize(strings.TrimPrefix(q, marker)), true
	}
	return normalize(q), false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
