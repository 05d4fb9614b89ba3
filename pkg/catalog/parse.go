package catalog

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/validate"
)

// TextParser accepts any non-placeholder string.
func TextParser(name string) ParseFunc {
	return func(_ context.Context, raw string, _ Env) (domain.Value, error) {
		s, err := validate.Text(raw)
		if err != nil {
			return domain.Value{}, domain.Invalid(name, "%v", err)
		}
		return domain.TextValue(s), nil
	}
}

// DateParser resolves raw through the extractor and requires the result to be
// on or after the timestamp returned by notBefore.
func DateParser(name string, notBefore func(Env) (time.Time, string)) ParseFunc {
	return func(ctx context.Context, raw string, env Env) (domain.Value, error) {
		if env.Extractor == nil {
			return domain.Value{}, domain.Invalid(name, "no date resolver")
		}
		resolved := env.Extractor.ResolveDate(ctx, raw, env.Now)
		t, err := validate.ISO8601(resolved)
		if err != nil {
			return domain.Value{}, domain.Invalid(name, "unresolved date %q", resolved)
		}
		if bound, label := notBefore(env); t.Before(bound) {
			return domain.Value{}, domain.Invalid(name, "%s is before %s", t.Format(time.RFC3339), label)
		}
		return domain.DateValue(t), nil
	}
}

// MoneyParser accepts amounts of at least minimum.
func MoneyParser(name string, minimum float64) ParseFunc {
	return func(_ context.Context, raw string, _ Env) (domain.Value, error) {
		n, err := validate.Money(raw)
		if err != nil {
			return domain.Value{}, domain.Invalid(name, "%v", err)
		}
		if n < minimum {
			return domain.Value{}, domain.Invalid(name, "%.2f is below the minimum of %.0f", n, minimum)
		}
		return domain.MoneyValue(n), nil
	}
}

// CountParser accepts whole numbers of at least minimum.
func CountParser(name string, minimum int) ParseFunc {
	return func(_ context.Context, raw string, _ Env) (domain.Value, error) {
		n, err := validate.Count(raw)
		if err != nil {
			return domain.Value{}, domain.Invalid(name, "%v", err)
		}
		if n < minimum {
			return domain.Value{}, domain.Invalid(name, "%d is below the minimum of %d", n, minimum)
		}
		return domain.CountValue(n), nil
	}
}

// PrizeParser accepts a positive amount strictly below what the parent budget
// leaves after every other child's prize.
func PrizeParser(name string) ParseFunc {
	return func(_ context.Context, raw string, env Env) (domain.Value, error) {
		n, err := validate.Money(raw)
		if err != nil {
			return domain.Value{}, domain.Invalid(name, "%v", err)
		}
		if n <= 0 {
			return domain.Value{}, domain.Invalid(name, "prize must be positive")
		}
		budget, ok := env.Parent.Amount(domain.FieldTotalBudget)
		if !ok {
			return domain.Value{}, domain.Invalid(name, "parent budget is unknown")
		}
		if remaining := budget - env.OtherPrizes; n >= remaining {
			return domain.Value{}, domain.Invalid(name, "%.2f does not fit the remaining budget of %.2f", n, remaining)
		}
		return domain.MoneyValue(n), nil
	}
}

// ExtractedListParser delegates list extraction to the oracle. Skip answers
// short-circuit to an empty list and an empty result is accepted.
func ExtractedListParser(name string) ParseFunc {
	return func(ctx context.Context, raw string, env Env) (domain.Value, error) {
		if validate.IsSkip(raw) {
			return domain.ListValue(domain.KindExtractedList, nil), nil
		}
		if env.Extractor == nil {
			return domain.Value{}, domain.Invalid(name, "no list extractor")
		}
		items := env.Extractor.ExtractList(ctx, name, raw)
		if len(items) > 0 && items[0] == domain.Sentinel {
			return domain.Value{}, domain.Invalid(name, "could not extract a list")
		}
		return domain.ListValue(domain.KindExtractedList, validate.Distinct(items)), nil
	}
}

// StringListParser splits the answer locally and requires minimum distinct entries.
func StringListParser(name string, minimum int) ParseFunc {
	return func(_ context.Context, raw string, _ Env) (domain.Value, error) {
		items := validate.Distinct(validate.SplitList(raw))
		if len(items) < minimum {
			return domain.Value{}, domain.Invalid(name, "%d distinct entries, need %d", len(items), minimum)
		}
		return domain.ListValue(domain.KindStringList, items), nil
	}
}

// MediaParser never rejects. A URL or an "uploaded" signal records the asset,
// anything else records a skip.
func MediaParser(_ string) ParseFunc {
	return func(_ context.Context, raw string, _ Env) (domain.Value, error) {
		if ref, ok := mediaRef(raw); ok {
			return domain.MediaValue(ref), nil
		}
		return domain.SkippedMedia(), nil
	}
}

func mediaRef(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if u, err := url.Parse(s); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return s, true
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "uploaded") {
		return "", false
	}
	rest := strings.TrimSpace(strings.TrimLeft(s[len("uploaded"):], " :-"))
	if rest == "" {
		rest = "uploaded"
	}
	return rest, true
}
