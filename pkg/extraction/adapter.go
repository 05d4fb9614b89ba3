package extraction

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/validate"
)

const (
	KindDate = "date"
	KindList = "list"
)

var localDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// BreakerConfig mirrors the gobreaker settings exposed to configuration.
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig trips after most of at least five calls fail.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      1,
		Interval:         30 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Adapter implements catalog.Extractor on top of a ports.Oracle.
type Adapter struct {
	oracle        ports.Oracle
	breaker       *gobreaker.CircuitBreaker
	timeout       time.Duration
	logger        *slog.Logger
	hooks         domain.LifecycleHooks
	now           func() time.Time
	breakerConfig BreakerConfig
}

// Option configures the Adapter.
type Option func(*Adapter)

// WithTimeout bounds each oracle call.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// WithLifecycleHooks reports every oracle call through hooks.OnExtraction.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(a *Adapter) {
		a.hooks = hooks
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg BreakerConfig) Option {
	return func(a *Adapter) {
		a.breakerConfig = cfg
	}
}

// New creates an Adapter. A nil oracle is allowed: every oracle-backed call
// then resolves to the sentinel, while locally parseable input still works.
func New(oracle ports.Oracle, opts ...Option) *Adapter {
	a := &Adapter{
		oracle:        oracle,
		timeout:       15 * time.Second,
		logger:        logging.NewNop(),
		now:           time.Now,
		breakerConfig: DefaultBreakerConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	cfg := a.breakerConfig
	a.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "oracle",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			a.logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return a
}

// ResolveDate returns an ISO-8601 timestamp for text, or domain.Sentinel.
// Input that already is an RFC 3339 timestamp or a YYYY-MM-DD date is
// resolved locally without calling the oracle.
func (a *Adapter) ResolveDate(ctx context.Context, text string, now time.Time) string {
	text = strings.TrimSpace(text)
	if t, err := validate.ISO8601(text); err == nil {
		return t.Format(time.RFC3339)
	}
	if localDate.MatchString(text) {
		if t, err := time.Parse(time.DateOnly, text); err == nil {
			return t.Format(time.RFC3339)
		}
		return domain.Sentinel
	}

	out, ok := a.call(ctx, KindDate, buildDatePrompt(text, now))
	if !ok {
		return domain.Sentinel
	}
	t, err := validate.ISO8601(clean(out))
	if err != nil {
		a.logger.Debug("Oracle returned no usable date", "output", out)
		return domain.Sentinel
	}
	return t.Format(time.RFC3339)
}

// ExtractList returns the items named in text, an empty slice for "none",
// or []string{domain.Sentinel} when text cannot be interpreted.
func (a *Adapter) ExtractList(ctx context.Context, subject, text string) []string {
	out, ok := a.call(ctx, KindList, buildListPrompt(subject, text))
	if !ok {
		return []string{domain.Sentinel}
	}
	cleaned := clean(out)
	if strings.EqualFold(cleaned, domain.Sentinel) {
		return []string{domain.Sentinel}
	}
	items := validate.SplitList(cleaned)
	if len(items) > 0 && strings.EqualFold(items[0], domain.Sentinel) {
		return []string{domain.Sentinel}
	}
	return items
}

// call runs one oracle request through the breaker. ok is false on any failure.
func (a *Adapter) call(ctx context.Context, kind, prompt string) (out string, ok bool) {
	if a.oracle == nil {
		return "", false
	}

	start := a.now()
	defer func() {
		if a.hooks.OnExtraction != nil {
			a.hooks.OnExtraction(ctx, &domain.ExtractionEvent{
				EventBase: domain.EventBase{Timestamp: a.now(), Type: domain.EventExtraction},
				Kind:      kind,
				Duration:  a.now().Sub(start),
				OK:        ok,
			})
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	res, err := a.breaker.Execute(func() (any, error) {
		return a.oracle.Complete(callCtx, prompt)
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			level = slog.LevelDebug
		}
		a.logger.Log(ctx, level, "Oracle call failed", "kind", kind, "err", err)
		return "", false
	}
	s, _ := res.(string)
	return s, true
}

// clean strips code fences, surrounding quotes and whitespace from oracle output.
func clean(out string) string {
	s := strings.TrimSpace(out)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	return strings.Trim(s, "\"'`")
}
