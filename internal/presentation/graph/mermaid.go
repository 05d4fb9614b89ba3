package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
)

// Overlay marks the progress of one session on the flowchart.
type Overlay struct {
	Answered []string
	Current  string
}

// NodeID names the flowchart node of a position. Child slots share one set of
// nodes; the loop edge stands for the repetition.
func NodeID(p domain.Position) string {
	switch p.Phase {
	case domain.PhaseParent:
		return fmt.Sprintf("p.%d", p.Field)
	case domain.PhaseChildren:
		return fmt.Sprintf("c.%d", p.Field)
	}
	return "done"
}

// OverlayFor derives the overlay of a session from its position.
func OverlayFor(c *catalog.Catalog, s *domain.Session) *Overlay {
	o := &Overlay{Current: NodeID(s.Position)}
	last := c.LastRequiredParent()
	for i := 0; i <= last; i++ {
		if s.Position.Phase == domain.PhaseParent && i >= s.Position.Field {
			break
		}
		o.Answered = append(o.Answered, fmt.Sprintf("p.%d", i))
	}
	for i := range c.Child {
		if s.Position.Phase == domain.PhaseChildren && i >= s.Position.Field {
			break
		}
		if s.Position.Phase == domain.PhaseParent {
			break
		}
		o.Answered = append(o.Answered, fmt.Sprintf("c.%d", i))
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of the question order.
// Shapes:
// - Start and done: ((Circle))
// - Required question: [/Parallelogram/]
// - Optional media: [Rectangle], reachable at any time
// It also applies overlay styles (Answered/Current) if provided.
func GenerateMermaid(c *catalog.Catalog, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")
	sb.WriteString("    start((\"start\"))\n")

	prev := "start"
	var media []catalog.Field
	for i, f := range c.Parent {
		if f.IsMedia() {
			media = append(media, f)
			continue
		}
		id := sanitizeMermaidID(fmt.Sprintf("p.%d", i))
		fmt.Fprintf(&sb, "    %s[/\"%s\"/]\n", id, f.Name)
		fmt.Fprintf(&sb, "    %s --> %s\n", prev, id)
		prev = id
	}

	sb.WriteString("    subgraph challenges\n")
	first := ""
	for i, f := range c.Child {
		id := sanitizeMermaidID(fmt.Sprintf("c.%d", i))
		fmt.Fprintf(&sb, "        %s[/\"%s\"/]\n", id, f.Name)
		if first == "" {
			first = id
		} else {
			fmt.Fprintf(&sb, "        %s --> %s\n", prev, id)
		}
		prev = id
	}
	sb.WriteString("    end\n")
	if first != "" {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(fmt.Sprintf("p.%d", c.LastRequiredParent())), first)
		fmt.Fprintf(&sb, "    %s -- \"next challenge\" --> %s\n", prev, first)
	}
	sb.WriteString("    done((\"done\"))\n")
	fmt.Fprintf(&sb, "    %s -- \"%s reached\" --> done\n", prev, domain.FieldChallengeCount)

	for _, f := range media {
		id := sanitizeMermaidID("m." + f.Name)
		fmt.Fprintf(&sb, "    %s[\"%s (optional)\"]\n", id, f.Name)
		fmt.Fprintf(&sb, "    %s -. \"any time\" .-> %s\n", id, first)
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef answered fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Answered {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s answered;\n", safeID)
			}
		}
		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
