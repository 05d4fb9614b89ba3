package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Phase is the coarse stage of an intake session.
type Phase string

const (
	PhaseParent   Phase = "collecting_parent"
	PhaseChildren Phase = "collecting_children"
	PhaseComplete Phase = "complete"
)

// Position is the explicit conversation cursor: which field of which entity is pending.
type Position struct {
	Phase Phase `json:"phase"`
	Field int   `json:"field"`
	Child int   `json:"child"`
}

// Token encodes the position for clients. Clients echo it back on the next turn.
func (p Position) Token() string {
	switch p.Phase {
	case PhaseParent:
		return fmt.Sprintf("p.%d", p.Field)
	case PhaseChildren:
		return fmt.Sprintf("c.%d.%d", p.Child, p.Field)
	case PhaseComplete:
		return "done"
	}
	return ""
}

// ParsePosition decodes a token produced by Position.Token.
func ParsePosition(token string) (Position, error) {
	parts := strings.Split(strings.TrimSpace(token), ".")
	nums := make([]int, 0, 2)
	for _, s := range parts[1:] {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, token)
		}
		nums = append(nums, n)
	}
	switch {
	case parts[0] == "p" && len(nums) == 1:
		return Position{Phase: PhaseParent, Field: nums[0]}, nil
	case parts[0] == "c" && len(nums) == 2:
		return Position{Phase: PhaseChildren, Child: nums[0], Field: nums[1]}, nil
	case parts[0] == "done" && len(nums) == 0:
		return Position{Phase: PhaseComplete}, nil
	}
	return Position{}, fmt.Errorf("%w: %q", ErrInvalidPosition, token)
}

func (p Position) String() string { return p.Token() }
