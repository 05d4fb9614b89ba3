package validate

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrNotMoney is returned when an answer does not parse to an amount.
var ErrNotMoney = errors.New("not a monetary amount")

var (
	currencyWords    = regexp.MustCompile(`\b(dollars?|euros?|pounds?|rupees?|coins?)\b`)
	currencySymbols  = regexp.MustCompile(`[$€£¥₹₿¢]`)
	currencyCodes    = regexp.MustCompile(`\b(usd|eur|gbp|inr|jpy|btc|eth|usdc|dai|usdt)\b`)
	writtenMagnitude = regexp.MustCompile(`^(\d[\d,_]*(?:\.\d+)?)\s+(thousand|million|billion|trillion)$`)
	suffixMagnitude  = regexp.MustCompile(`^(.*?)([kmbt])$`)
	separators       = regexp.MustCompile(`[\s,_]`)
	numeric          = regexp.MustCompile(`^-?\d*\.?\d+$`)
)

var magnitudes = map[string]float64{
	"thousand": 1e3,
	"million":  1e6,
	"billion":  1e9,
	"trillion": 1e12,
	"k":        1e3,
	"m":        1e6,
	"b":        1e9,
	"t":        1e12,
}

// Money parses a free-text amount such as "$20,000", "25k USDC" or "20 thousand dollars".
func Money(raw string) (float64, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, ErrEmpty
	}

	s = currencyWords.ReplaceAllString(s, "")
	s = currencySymbols.ReplaceAllString(s, "")
	s = currencyCodes.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	multiplier := 1.0
	if m := writtenMagnitude.FindStringSubmatch(s); m != nil {
		s, multiplier = m[1], magnitudes[m[2]]
	} else if m := suffixMagnitude.FindStringSubmatch(s); m != nil {
		s, multiplier = m[1], magnitudes[m[2]]
	}

	s = separators.ReplaceAllString(s, "")
	if !numeric.MatchString(s) {
		return 0, ErrNotMoney
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(n, 0) || math.IsNaN(n) {
		return 0, ErrNotMoney
	}
	return n * multiplier, nil
}
