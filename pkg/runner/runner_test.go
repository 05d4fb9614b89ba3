package runner_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/testutils"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/runner"
)

func newEngine(t *testing.T, opts ...intake.Option) *intake.Engine {
	t.Helper()
	base := []intake.Option{
		intake.WithExtractor(testutils.NewStubExtractor()),
		intake.WithClock(testutils.Clock),
	}
	eng, err := intake.New(append(base, opts...)...)
	require.NoError(t, err)
	return eng
}

func lines(answers ...string) *strings.Reader {
	return strings.NewReader(strings.Join(answers, "\n") + "\n")
}

func TestRun_CompletesIntake(t *testing.T) {
	answers := append([]string{}, testutils.ParentAnswers...)
	answers = append(answers, testutils.ChildAnswers("AI Agents", "5000")...)
	answers = append(answers, testutils.ChildAnswers("Climate", "5000")...)

	var out bytes.Buffer
	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(lines(answers...), &out)),
	)
	resp, err := r.Run(context.Background(), newEngine(t))
	require.NoError(t, err)

	assert.True(t, resp.Complete)
	assert.Contains(t, out.String(), "What is the title of the hackathon?")
	assert.Contains(t, out.String(), "All set!")
}

func TestRun_ClarifiesAndPausesOnEOF(t *testing.T) {
	var out bytes.Buffer
	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(lines("DevHack", "Acme", "someday"), &out)),
	)
	resp, err := r.Run(context.Background(), newEngine(t))
	require.NoError(t, err)

	assert.False(t, resp.Complete)
	assert.True(t, resp.Clarification)
	assert.Equal(t, "p.2", resp.Token)
	assert.Contains(t, out.String(), "I need a date from today onwards")
	assert.Contains(t, out.String(), "Resume with session "+resp.SessionID)
}

func TestRun_ResumesSession(t *testing.T) {
	eng := newEngine(t)
	first := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(lines("DevHack", "/quit"), &bytes.Buffer{})),
	)
	paused, err := first.Run(context.Background(), eng)
	require.NoError(t, err)
	assert.Equal(t, "p.1", paused.Token)

	var out bytes.Buffer
	second := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithSessionID(paused.SessionID),
		runner.WithInputHandler(runner.NewTextHandler(lines("Acme Labs"), &out)),
	)
	resp, err := second.Run(context.Background(), eng)
	require.NoError(t, err)
	assert.Equal(t, paused.SessionID, resp.SessionID)
	assert.Equal(t, "p.2", resp.Token)
	assert.True(t, strings.HasPrefix(out.String(), "What is the organization"))
}

func TestRun_OptionalMediaCommand(t *testing.T) {
	gw := memory.NewGateway()
	eng := newEngine(t, intake.WithGateway(gw))
	answers := append([]string{}, testutils.ParentAnswers...)
	answers = append(answers, "/optional 1 https://cdn.example.com/logo.png", "/optional 9 nope", "/dance")

	var out bytes.Buffer
	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(lines(answers...), &out)),
	)
	resp, err := r.Run(context.Background(), eng)
	require.NoError(t, err)

	assert.Equal(t, "c.0.0", resp.Token, "side turns never move the position")
	assert.Contains(t, out.String(), "usage: /optional")
	assert.Contains(t, out.String(), "unknown command /dance")

	ev, err := gw.LoadEvent(context.Background(), resp.EventID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/logo.png", ev.Fields.Text(domain.FieldLogo))
}

func TestRun_RetryableFailureAsksAgain(t *testing.T) {
	gw := &testutils.FlakyGateway{Gateway: memory.NewGateway()}
	gw.FailCommits(1)
	eng := newEngine(t, intake.WithGateway(gw))

	answers := append([]string{}, testutils.ParentAnswers...)
	answers = append(answers, testutils.ParentAnswers[len(testutils.ParentAnswers)-1])

	var out bytes.Buffer
	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewTextHandler(lines(answers...), &out)),
	)
	resp, err := r.Run(context.Background(), eng)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "could not be saved")
	assert.Equal(t, domain.PhaseChildren, resp.Phase)
}

func TestRun_RequiresOwner(t *testing.T) {
	_, err := runner.NewRunner().Run(context.Background(), newEngine(t))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestJSONHandler(t *testing.T) {
	in := strings.NewReader("\"DevHack\"\n{\"message\":\"Acme Labs\"}\nseptember 1st\n")
	var out bytes.Buffer
	r := runner.NewRunner(
		runner.WithOwner("organizer-1"),
		runner.WithInputHandler(runner.NewJSONHandler(in, &out)),
	)
	resp, err := r.Run(context.Background(), newEngine(t))
	require.NoError(t, err)
	assert.Equal(t, "p.3", resp.Token)

	dec := json.NewDecoder(&out)
	var first domain.Response
	require.NoError(t, dec.Decode(&first))
	assert.Equal(t, "p.0", first.Token)
	assert.Equal(t, "What is the title of the hackathon?", first.Prompt)
}
