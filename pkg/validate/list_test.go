package validate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"commas", "Innovation, Impact, UX", []string{"Innovation", "Impact", "UX"}},
		{"lines", "Innovation\nImpact\n\nUX", []string{"Innovation", "Impact", "UX"}},
		{"bullets", "- Innovation\n* Impact\n• UX", []string{"Innovation", "Impact", "UX"}},
		{"json array", `["Google", "Microsoft"]`, []string{"Google", "Microsoft"}},
		{"single quotes", "['Google',\n 'Microsoft']", []string{"Google", "Microsoft"}},
		{"empty marker", `[""]`, []string{}},
		{"empty array", `[]`, []string{}},
		{"fenced", "```json\n[\"Twilio API\", \"https://api.twilio.com/docs\"]\n```", []string{"Twilio API", "https://api.twilio.com/docs"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}

func TestDistinct(t *testing.T) {
	got := Distinct([]string{"Innovation", "innovation ", "Impact", "", "UX", "IMPACT"})
	assert.Equal(t, []string{"Innovation", "Impact", "UX"}, got)
}

func TestISO8601(t *testing.T) {
	got, err := ISO8601("2025-08-29T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC), got)

	got, err = ISO8601(`"2025-08-29T05:30:00+05:30"`)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC), got)

	for _, s := range []string{"INVALID", "2025-08-29", "2025-08-29T00:00Z", "2025-08-29T00:00:00", "2025-02-30T00:00:00Z", "2025-08-29T00:00:00.123Z"} {
		_, err := ISO8601(s)
		assert.ErrorIs(t, err, ErrNotTimestamp, s)
	}
}
