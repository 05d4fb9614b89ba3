package validate

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrEmpty       = errors.New("value is empty")
	ErrPlaceholder = errors.New("value is a placeholder")
	ErrNoAlnum     = errors.New("value has no letters or digits")
)

var placeholders = map[string]struct{}{
	"null":      {},
	"undefined": {},
	"n/a":       {},
	"tbd":       {},
	"todo":      {},
}

var skipWords = map[string]struct{}{
	"skip":    {},
	"none":    {},
	"no":      {},
	"n/a":     {},
	"nothing": {},
	"-":       {},
	"no one":  {},
	"nobody":  {},
}

// Text trims raw and rejects empty, placeholder, or symbol-only answers.
func Text(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmpty
	}
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return "", ErrPlaceholder
	}
	if !strings.ContainsFunc(s, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) {
		return "", ErrNoAlnum
	}
	return s, nil
}

// IsSkip reports whether raw explicitly declines an optional field.
func IsSkip(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ".!")
	if s == "" {
		return true
	}
	_, ok := skipWords[s]
	return ok
}
