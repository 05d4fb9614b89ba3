package validate

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrNotTimestamp is returned for anything other than a strict ISO-8601 timestamp.
var ErrNotTimestamp = errors.New("not an ISO-8601 timestamp")

var iso8601 = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(Z|[+-]\d{2}:\d{2})$`)

// ISO8601 accepts seconds-precision timestamps with an explicit offset or "Z".
func ISO8601(s string) (time.Time, error) {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if !iso8601.MatchString(s) {
		return time.Time{}, ErrNotTimestamp
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, ErrNotTimestamp
	}
	return t.UTC(), nil
}
