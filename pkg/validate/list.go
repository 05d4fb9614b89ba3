package validate

import (
	"regexp"
	"strings"
)

var (
	fence    = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	listSeps = regexp.MustCompile(`[\r\n,]+`)
)

// SplitList turns a list-shaped answer into its items.
// It accepts plain comma or line separated text as well as bracketed,
// quoted output such as `["Google", "Microsoft"]`, optionally inside a code fence.
func SplitList(raw string) []string {
	s := strings.TrimSpace(raw)
	if m := fence.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")

	out := []string{}
	for _, part := range listSeps.Split(s, -1) {
		item := strings.TrimSpace(part)
		item = strings.TrimLeft(item, "-*• ")
		item = strings.Trim(item, "\"'` ")
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Distinct removes case-insensitive duplicates, keeping the first spelling.
func Distinct(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(item))
	}
	return out
}
