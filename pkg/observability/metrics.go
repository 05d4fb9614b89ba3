package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aretw0/intake/pkg/domain"
)

// Metrics holds the Prometheus collectors of one engine.
type Metrics struct {
	registry *prometheus.Registry

	SessionsStarted     prometheus.Counter
	FieldsAccepted      *prometheus.CounterVec
	FieldsRejected      *prometheus.CounterVec
	PhaseChanges        *prometheus.CounterVec
	ChallengesCommitted prometheus.Counter
	Completions         prometheus.Counter
	PrizesCommitted     prometheus.Histogram
	Extractions         *prometheus.CounterVec
	ExtractionTime      *prometheus.HistogramVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates collectors under namespace and registers them, together
// with the Go runtime and process collectors, on a private registry.
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of intake sessions started",
		}),
		FieldsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_accepted_total",
			Help:      "Answers accepted, by phase and field",
		}, []string{"phase", "field"}),
		FieldsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fields_rejected_total",
			Help:      "Answers rejected with a clarification, by phase and field",
		}, []string{"phase", "field"}),
		PhaseChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_changes_total",
			Help:      "Phase transitions",
		}, []string{"from", "to"}),
		ChallengesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_committed_total",
			Help:      "Challenges written to durable storage",
		}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intakes_completed_total",
			Help:      "Intakes that reached the complete phase",
		}),
		PrizesCommitted: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "challenge_prize_amount",
			Help:      "Prize amount of committed challenges",
			Buckets:   prometheus.ExponentialBuckets(500, 2, 8),
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Oracle extractions by kind and outcome",
		}, []string{"kind", "outcome"}),
		ExtractionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Oracle extraction latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SessionsStarted,
		m.FieldsAccepted,
		m.FieldsRejected,
		m.PhaseChanges,
		m.ChallengesCommitted,
		m.Completions,
		m.PrizesCommitted,
		m.Extractions,
		m.ExtractionTime,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Hooks returns lifecycle hooks that record engine events.
// Combine them with other hooks through LifecycleHooks.Merge.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSessionStart: func(context.Context, *domain.SessionEvent) {
			m.SessionsStarted.Inc()
		},
		OnFieldAccepted: func(_ context.Context, e *domain.FieldEvent) {
			m.FieldsAccepted.WithLabelValues(string(e.Phase), e.Field).Inc()
		},
		OnFieldRejected: func(_ context.Context, e *domain.FieldEvent) {
			m.FieldsRejected.WithLabelValues(string(e.Phase), e.Field).Inc()
		},
		OnPhaseChange: func(_ context.Context, e *domain.PhaseEvent) {
			m.PhaseChanges.WithLabelValues(string(e.From), string(e.To)).Inc()
		},
		OnChildCommitted: func(_ context.Context, e *domain.ChildEvent) {
			m.ChallengesCommitted.Inc()
			m.PrizesCommitted.Observe(e.Prize)
		},
		OnComplete: func(context.Context, *domain.CompletionEvent) {
			m.Completions.Inc()
		},
		OnExtraction: func(_ context.Context, e *domain.ExtractionEvent) {
			outcome := "ok"
			if !e.OK {
				outcome = "failed"
			}
			m.Extractions.WithLabelValues(e.Kind, outcome).Inc()
			m.ExtractionTime.WithLabelValues(e.Kind).Observe(e.Duration.Seconds())
		},
	}
}

// Middleware records request counts and latency. The route label is the chi
// route pattern, so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
