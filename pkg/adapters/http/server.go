package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/observability"
	"github.com/aretw0/intake/pkg/runner"
)

// Engine defines the engine operations exposed over HTTP.
type Engine interface {
	Advance(ctx context.Context, req domain.Request) (*domain.Response, error)
	Resume(ctx context.Context, ownerID, sessionID string) (*domain.Response, error)
	Event(ctx context.Context, ownerID, eventID string) (*domain.Event, error)
}

// Server holds the HTTP handlers of the intake API.
type Server struct {
	engine    Engine
	auth      Authenticator
	Streams   *StreamManager
	logger    *slog.Logger
	metrics   *observability.Metrics
	sanitizer runner.Sanitizer
	origins   []string
	maxBody   int64
	heartbeat time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics instruments every route and serves /metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithCORS sets the allowed browser origins. Defaults to none.
func WithCORS(origins ...string) Option {
	return func(s *Server) {
		s.origins = origins
	}
}

// WithSanitizer sets the message size limit.
func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// WithHeartbeat sets the keep-alive interval of event streams.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		s.heartbeat = d
	}
}

// NewHandler creates the HTTP handler. Every /v1 route requires auth.
func NewHandler(engine Engine, auth Authenticator, opts ...Option) (http.Handler, error) {
	if auth == nil {
		return nil, fmt.Errorf("an authenticator is required")
	}
	s := &Server{
		engine:    engine,
		auth:      auth,
		logger:    logging.NewNop(),
		maxBody:   16 << 10,
		heartbeat: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams = NewStreamManager(s.logger)

	doc, err := GetSwagger(context.Background())
	if err != nil {
		return nil, err
	}
	reqValidator, err := newRequestValidator(doc)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/info", func(w http.ResponseWriter, r *http.Request) {
		apiVersion := "unknown"
		if doc.Info != nil {
			apiVersion = doc.Info.Version
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         "intake-http",
			"version":     strings.TrimSpace(intake.Version),
			"api_version": apiVersion,
		})
	})
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(rawSpec)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.auth))
		r.Use(reqValidator.Middleware)

		r.Post("/turns", s.Advance)
		r.Post("/sessions", s.Start)
		r.Get("/sessions/{id}", s.Resume)
		r.Post("/sessions/{id}/turns", s.Answer)
		r.Get("/sessions/{id}/stream", s.Stream)
		r.Get("/events/{id}", s.GetEvent)
	})
	return r, nil
}

// Advance handles POST /v1/turns.
func (s *Server) Advance(w http.ResponseWriter, r *http.Request) {
	var body AdvanceRequest
	if err := decode(r, s.maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	status := http.StatusOK
	if body.SessionID == "" {
		status = http.StatusCreated
	}
	s.turn(w, r, status, body.SessionID, body.TurnRequest)
}

// Start handles POST /v1/sessions.
func (s *Server) Start(w http.ResponseWriter, r *http.Request) {
	s.turn(w, r, http.StatusCreated, "", TurnRequest{})
}

// Answer handles POST /v1/sessions/{id}/turns.
func (s *Server) Answer(w http.ResponseWriter, r *http.Request) {
	var body TurnRequest
	if err := decode(r, s.maxBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.turn(w, r, http.StatusOK, chi.URLParam(r, "id"), body)
}

func (s *Server) turn(w http.ResponseWriter, r *http.Request, status int, sessionID string, body TurnRequest) {
	msg, err := s.sanitizer.Clean(body.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp, err := s.engine.Advance(r.Context(), domain.Request{
		SessionID:    sessionID,
		OwnerID:      OwnerFromContext(r.Context()),
		Token:        body.Token,
		LastQuestion: body.LastQuestion,
		Message:      msg,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if payload, err := json.Marshal(resp); err == nil {
		s.Streams.Broadcast(resp.SessionID, payload)
	}
	writeJSON(w, status, resp)
}

// Resume handles GET /v1/sessions/{id}.
func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	resp, err := s.engine.Resume(r.Context(), OwnerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvent handles GET /v1/events/{id}.
func (s *Server) GetEvent(w http.ResponseWriter, r *http.Request) {
	ev, err := s.engine.Event(r.Context(), OwnerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

// Stream handles GET /v1/sessions/{id}/stream (SSE). The first event is the
// pending prompt; every later turn on the session is pushed as it happens.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}
	sessionID := chi.URLParam(r, "id")
	current, err := s.engine.Resume(r.Context(), OwnerFromContext(r.Context()), sessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	first, _ := json.Marshal(current)
	fmt.Fprintf(w, "event: turn\ndata: %s\n\n", first)
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "session_id", sessionID)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: turn\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	switch {
	case status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		s.logger.Warn("Turn not persisted", "request_id", middleware.GetReqID(r.Context()), "err", err)
		msg = "the answer could not be saved, send the same turn again"
	case status >= http.StatusInternalServerError:
		s.logger.Error("Request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
		msg = "internal error"
	default:
		s.logger.Debug("Request rejected", "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, code, msg)
}
