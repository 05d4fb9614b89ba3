package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/intake/pkg/domain"
)

// column maps one field onto the column of the same name.
type column struct {
	name string
	kind domain.Kind
}

type columns []column

var eventColumns = columns{
	{domain.FieldTitle, domain.KindText},
	{domain.FieldOrganization, domain.KindText},
	{domain.FieldRegistrationDate, domain.KindDate},
	{domain.FieldHackingStart, domain.KindDate},
	{domain.FieldSubmissionDeadline, domain.KindDate},
	{domain.FieldTotalBudget, domain.KindMoney},
	{domain.FieldChallengeCount, domain.KindCount},
	{domain.FieldLogo, domain.KindMedia},
	{domain.FieldBanner, domain.KindMedia},
}

var challengeColumns = columns{
	{domain.FieldTitle, domain.KindText},
	{domain.FieldDescription, domain.KindText},
	{domain.FieldPrizeAmount, domain.KindMoney},
	{domain.FieldSponsors, domain.KindExtractedList},
	{domain.FieldJudgingCriteria, domain.KindStringList},
	{domain.FieldResources, domain.KindExtractedList},
}

func (cs columns) names() string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.name
	}
	return strings.Join(out, ", ")
}

func (cs columns) placeholders() string {
	return strings.TrimSuffix(strings.Repeat("?, ", len(cs)), ", ")
}

func (cs columns) assignments() string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.name + " = ?"
	}
	return strings.Join(out, ", ")
}

func (cs columns) excluded() string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.name + " = excluded." + c.name
	}
	return strings.Join(out, ", ")
}

// values converts f into column arguments, in column order. Absent and
// skipped fields are NULL.
func (cs columns) values(f domain.Fields) ([]any, error) {
	out := make([]any, len(cs))
	for i, c := range cs {
		v, ok := f[c.name]
		if !ok || v.Skipped {
			continue
		}
		switch c.kind {
		case domain.KindDate:
			if v.Time != nil {
				out[i] = v.Time.UTC()
			}
		case domain.KindMoney:
			out[i] = v.Amount
		case domain.KindCount:
			out[i] = v.Count
		case domain.KindStringList, domain.KindExtractedList:
			b, err := json.Marshal(f.List(c.name))
			if err != nil {
				return nil, fmt.Errorf("encode %s: %w", c.name, err)
			}
			out[i] = string(b)
		default:
			out[i] = v.Text
		}
	}
	return out, nil
}

// dests returns one scan destination per column.
func (cs columns) dests() []any {
	out := make([]any, len(cs))
	for i, c := range cs {
		switch c.kind {
		case domain.KindDate:
			out[i] = &sql.NullTime{}
		case domain.KindMoney:
			out[i] = &sql.NullFloat64{}
		case domain.KindCount:
			out[i] = &sql.NullInt64{}
		default:
			out[i] = &sql.NullString{}
		}
	}
	return out
}

// fields rebuilds the record from scanned dests. NULL columns are left out.
func (cs columns) fields(dests []any) (domain.Fields, error) {
	f := domain.Fields{}
	for i, c := range cs {
		switch d := dests[i].(type) {
		case *sql.NullTime:
			if d.Valid {
				f[c.name] = domain.DateValue(d.Time)
			}
		case *sql.NullFloat64:
			if d.Valid {
				f[c.name] = domain.MoneyValue(d.Float64)
			}
		case *sql.NullInt64:
			if d.Valid {
				f[c.name] = domain.CountValue(int(d.Int64))
			}
		case *sql.NullString:
			if !d.Valid {
				continue
			}
			switch c.kind {
			case domain.KindStringList, domain.KindExtractedList:
				var items []string
				if err := json.Unmarshal([]byte(d.String), &items); err != nil {
					return nil, fmt.Errorf("decode %s: %w", c.name, err)
				}
				f[c.name] = domain.ListValue(c.kind, items)
			case domain.KindMedia:
				f[c.name] = domain.MediaValue(d.String)
			default:
				f[c.name] = domain.TextValue(d.String)
			}
		}
	}
	return f, nil
}
