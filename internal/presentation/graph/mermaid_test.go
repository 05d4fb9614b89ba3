package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/intake/internal/presentation/graph"
	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
)

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(catalog.Default(), nil)

	for _, want := range []string{
		"graph TD",
		"start((\"start\"))",
		"p_0[/\"title\"/]",
		"start --> p_0",
		"p_0 --> p_1",
		"subgraph challenges",
		"p_6 --> c_0",
		"-- \"next challenge\" --> c_0",
		"done((\"done\"))",
		"m_logo[\"logo (optional)\"]",
		"m_banner -. \"any time\" .-> c_0",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef", "no overlay, no styles")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	c := catalog.Default()
	s := domain.NewSession("s", "e", "o", time.Now())
	s.Position = domain.Position{Phase: domain.PhaseChildren, Child: 1, Field: 2}

	overlay := graph.OverlayFor(c, s)
	assert.Equal(t, "c.2", overlay.Current)
	assert.Contains(t, overlay.Answered, "p.6")
	assert.Contains(t, overlay.Answered, "c.1")
	assert.NotContains(t, overlay.Answered, "c.2")

	out := graph.GenerateMermaid(c, overlay)
	assert.Contains(t, out, "class p_0 answered;")
	assert.Contains(t, out, "class c_2 current;")
	assert.Equal(t, 1, strings.Count(out, "class c_1 answered;"))
}

func TestOverlayFor_Parent(t *testing.T) {
	s := domain.NewSession("s", "e", "o", time.Now())
	s.Position = domain.Position{Phase: domain.PhaseParent, Field: 2}

	overlay := graph.OverlayFor(catalog.Default(), s)
	assert.Equal(t, []string{"p.0", "p.1"}, overlay.Answered)
	assert.Equal(t, "p.2", overlay.Current)
}

func TestNodeID(t *testing.T) {
	assert.Equal(t, "done", graph.NodeID(domain.Position{Phase: domain.PhaseComplete}))
}
