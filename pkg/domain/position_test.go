package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionToken(t *testing.T) {
	tests := []struct {
		name string
		pos  Position
		want string
	}{
		{"parent", Position{Phase: PhaseParent, Field: 3}, "p.3"},
		{"child", Position{Phase: PhaseChildren, Child: 1, Field: 4}, "c.1.4"},
		{"complete", Position{Phase: PhaseComplete}, "done"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pos.Token())
			got, err := ParsePosition(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.pos, got)
		})
	}
}

func TestParsePosition_Invalid(t *testing.T) {
	for _, token := range []string{"", "p", "p.x", "c.1", "p.-1", "done.1", "z.1"} {
		_, err := ParsePosition(token)
		assert.ErrorIs(t, err, ErrInvalidPosition, token)
	}
}

func TestSession_Snapshot(t *testing.T) {
	s := NewSession("s1", "e1", "u1", fixedNow)
	s.Parent[FieldTitle] = TextValue("Hack")
	s.Children = append(s.Children, ChildDraft{OrderIndex: 0, Fields: Fields{
		FieldSponsors: ListValue(KindExtractedList, []string{"Acme"}),
	}})

	snap := s.Snapshot()
	snap.Parent[FieldTitle] = TextValue("Other")
	snap.Children[0].Fields[FieldSponsors].List[0] = "Mutated"

	assert.Equal(t, "Hack", s.Parent.Text(FieldTitle))
	assert.Equal(t, []string{"Acme"}, s.Children[0].Fields.List(FieldSponsors))
}

func TestSession_Current(t *testing.T) {
	s := NewSession("s1", "e1", "u1", fixedNow)
	assert.Nil(t, s.Current())

	s.Position = Position{Phase: PhaseChildren}
	s.Children = []ChildDraft{{OrderIndex: 0, Fields: Fields{}}}
	require.NotNil(t, s.Current())
	assert.Equal(t, 0, s.Current().OrderIndex)

	s.Cursor = 1
	assert.Nil(t, s.Current())
}

func TestSession_PrizesExcept(t *testing.T) {
	s := NewSession("s1", "e1", "u1", fixedNow)
	s.Children = []ChildDraft{
		{OrderIndex: 0, Fields: Fields{FieldPrizeAmount: MoneyValue(5000)}},
		{OrderIndex: 1, Fields: Fields{FieldPrizeAmount: MoneyValue(7000)}},
		{OrderIndex: 2, Fields: Fields{}},
	}
	assert.Equal(t, 7000.0, s.PrizesExcept(0))
	assert.Equal(t, 12000.0, s.PrizesExcept(2))
}
