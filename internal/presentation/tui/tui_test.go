package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf)

	assert.Contains(t, buf.String(), "Let's set up your hackathon.")
	assert.NotContains(t, buf.String(), "\x1b[", "a buffer is not a terminal")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer(0)
	require.NoError(t, err)

	out, err := render("What is the **title** of the hackathon?")
	require.NoError(t, err)
	assert.Contains(t, out, "title")
	assert.Contains(t, out, "hackathon?")
}
