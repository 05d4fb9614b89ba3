package validate

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotCount is returned when an answer does not hold exactly one whole,
// non-negative number.
var ErrNotCount = errors.New("not a count")

var (
	integers          = regexp.MustCompile(`\d+`)
	thousandSeparator = regexp.MustCompile(`(\d)[,_](\d{3})`)
	signedOrFraction  = regexp.MustCompile(`[-+]\s*\d|\d\s*[.,/]\s*\d`)
	wordToken         = regexp.MustCompile(`[a-z]+`)
)

var numberWords = map[string]int{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14, "fifteen": 15,
	"sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19, "twenty": 20,
	"couple": 2, "pair": 2,
}

// Count reads a whole number from raw, in digits or as an English word.
// Signed, fractional and multi-number answers are rejected.
func Count(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, ErrEmpty
	}
	for thousandSeparator.MatchString(s) {
		s = thousandSeparator.ReplaceAllString(s, "$1$2")
	}
	if signedOrFraction.MatchString(s) {
		return 0, ErrNotCount
	}

	digits := integers.FindAllString(s, -1)
	words := []int{}
	for _, w := range wordToken.FindAllString(s, -1) {
		if n, ok := numberWords[w]; ok {
			words = append(words, n)
		}
	}
	switch {
	case len(digits) == 1 && len(words) == 0:
		n, err := strconv.Atoi(digits[0])
		if err != nil {
			return 0, ErrNotCount
		}
		return n, nil
	case len(digits) == 0 && len(words) == 1:
		return words[0], nil
	}
	return 0, ErrNotCount
}
