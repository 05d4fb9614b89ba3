package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxInputSize is 4KB, far above any legitimate answer.
	DefaultMaxInputSize = 4096
	// EnvMaxInputSize is the environment variable to override the default
	EnvMaxInputSize = "INTAKE_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans user messages before they reach the engine.
// The zero value uses DefaultMaxInputSize (or the environment override).
type Sanitizer struct {
	MaxSize int
}

// Clean enforces the size limit, validates UTF-8, drops control characters
// other than newline and tab, and trims surrounding whitespace.
//
// Oversized input is rejected rather than truncated: a truncated budget or
// date would silently change meaning.
func (s Sanitizer) Clean(input string) (string, error) {
	limit := s.MaxSize
	if limit <= 0 {
		limit = maxInputSize()
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	dirty := false
	for _, r := range input {
		if unicode.IsControl(r) && !isSafeControl(r) {
			dirty = true
			break
		}
	}
	if !dirty {
		return strings.TrimSpace(input), nil
	}

	// ESC, NUL, BEL and friends would poison logs and terminals.
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// SanitizeInput cleans input with the default limit.
func SanitizeInput(input string) (string, error) {
	return Sanitizer{}.Clean(input)
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

func maxInputSize() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
