package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/catalog"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/runner"
)

// CatalogURI is the resource describing every field the intake asks for.
const CatalogURI = "intake://catalog"

// Engine defines the interface required by the MCP server.
type Engine interface {
	Advance(ctx context.Context, req domain.Request) (*domain.Response, error)
	Resume(ctx context.Context, ownerID, sessionID string) (*domain.Response, error)
	Event(ctx context.Context, ownerID, eventID string) (*domain.Event, error)
	Sessions(ctx context.Context, ownerID string) ([]*domain.Response, error)
	Catalog() *catalog.Catalog
}

// Authenticator resolves the owner of an SSE connection.
type Authenticator interface {
	Authenticate(r *http.Request) (ownerID string, err error)
}

// AdvanceArgs are the arguments of the advance_intake tool.
type AdvanceArgs struct {
	SessionID    string `json:"session_id"`
	Token        string `json:"token,omitempty"`
	LastQuestion string `json:"last_question,omitempty"`
	Message      string `json:"message"`
}

// SessionArgs are the arguments of resume_intake.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// EventArgs are the arguments of get_event.
type EventArgs struct {
	EventID string `json:"event_id"`
}

// SessionList is the result of list_intakes.
type SessionList struct {
	Sessions []*domain.Response `json:"sessions"`
}

// Server exposes the intake engine as MCP tools.
type Server struct {
	engine    Engine
	owner     string
	auth      Authenticator
	sanitizer runner.Sanitizer
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithOwner sets the owner of stdio sessions and of SSE connections when no
// Authenticator is configured.
func WithOwner(ownerID string) Option {
	return func(s *Server) {
		s.owner = ownerID
	}
}

// WithAuthenticator requires SSE clients to present a bearer token.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *Server) {
		s.auth = auth
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithSanitizer(sz runner.Sanitizer) Option {
	return func(s *Server) {
		s.sanitizer = sz
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("intake-mcp", strings.TrimSpace(intake.Version), server.WithToolCapabilities(false)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer,
		server.WithBaseURL(baseURL),
		server.WithSSEContextFunc(s.connectionContext),
	)

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr: addr,
		Handler: cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Requested-With"},
		})(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

type ownerKey struct{}

// connectionContext pins the owner of an SSE connection. A failed
// authentication pins the empty owner, which the engine refuses.
func (s *Server) connectionContext(ctx context.Context, r *http.Request) context.Context {
	if s.auth == nil {
		return ctx
	}
	owner, err := s.auth.Authenticate(r)
	if err != nil {
		s.logger.Warn("MCP: Unauthenticated connection", "remote", r.RemoteAddr, "err", err)
		owner = ""
	}
	return context.WithValue(ctx, ownerKey{}, owner)
}

func (s *Server) ownerFrom(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok {
		return owner
	}
	return s.owner
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("start_intake",
		mcp.WithDescription("Start a new hackathon intake. Returns the first question and the position token to answer it with."),
		mcp.WithOutputSchema[domain.Response](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	advanceTool := mcp.NewTool("advance_intake",
		mcp.WithDescription("Answer the pending question of an intake session. Returns the next question, a clarification, or the completion."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by start_intake")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The organizer's answer")),
		mcp.WithString("token", mcp.Description("Position token of the question being answered")),
		mcp.WithString("last_question", mcp.Description("Question text being answered, used when no token is sent")),
		mcp.WithOutputSchema[domain.Response](),
	)
	s.mcpServer.AddTool(advanceTool, mcp.NewStructuredToolHandler(s.handleAdvance))

	resumeTool := mcp.NewTool("resume_intake",
		mcp.WithDescription("Show the pending question of an existing session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithOutputSchema[domain.Response](),
	)
	s.mcpServer.AddTool(resumeTool, mcp.NewStructuredToolHandler(s.handleResume))

	listTool := mcp.NewTool("list_intakes",
		mcp.WithDescription("List the caller's unfinished intakes with the question each one is waiting on."),
		mcp.WithOutputSchema[SessionList](),
	)
	s.mcpServer.AddTool(listTool, mcp.NewStructuredToolHandler(s.handleList))

	eventTool := mcp.NewTool("get_event",
		mcp.WithDescription("Read the draft event and its challenges as stored so far."),
		mcp.WithString("event_id", mcp.Required(), mcp.Description("Event ID")),
		mcp.WithOutputSchema[domain.Event](),
	)
	s.mcpServer.AddTool(eventTool, mcp.NewStructuredToolHandler(s.handleEvent))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (domain.Response, error) {
	resp, err := s.engine.Advance(ctx, domain.Request{OwnerID: s.ownerFrom(ctx)})
	if err != nil {
		return domain.Response{}, fmt.Errorf("start failed: %w", err)
	}
	return *resp, nil
}

func (s *Server) handleAdvance(ctx context.Context, _ mcp.CallToolRequest, args AdvanceArgs) (domain.Response, error) {
	if args.SessionID == "" {
		return domain.Response{}, errors.New("session_id is required, call start_intake first")
	}
	clean, err := s.sanitizer.Clean(args.Message)
	if err != nil {
		s.logger.Warn("MCP Advance: Input rejected", "err", err, "size", len(args.Message))
		return domain.Response{}, fmt.Errorf("input rejected: %w", err)
	}
	resp, err := s.engine.Advance(ctx, domain.Request{
		SessionID:    args.SessionID,
		OwnerID:      s.ownerFrom(ctx),
		Token:        args.Token,
		LastQuestion: args.LastQuestion,
		Message:      clean,
	})
	if err != nil {
		if domain.IsRetryable(err) {
			return domain.Response{}, fmt.Errorf("answer not saved, send the same answer again: %w", err)
		}
		return domain.Response{}, fmt.Errorf("advance failed: %w", err)
	}
	return *resp, nil
}

func (s *Server) handleResume(ctx context.Context, _ mcp.CallToolRequest, args SessionArgs) (domain.Response, error) {
	resp, err := s.engine.Resume(ctx, s.ownerFrom(ctx), args.SessionID)
	if err != nil {
		return domain.Response{}, fmt.Errorf("resume failed: %w", err)
	}
	return *resp, nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest, _ struct{}) (SessionList, error) {
	list, err := s.engine.Sessions(ctx, s.ownerFrom(ctx))
	if err != nil {
		return SessionList{}, fmt.Errorf("list failed: %w", err)
	}
	return SessionList{Sessions: list}, nil
}

func (s *Server) handleEvent(ctx context.Context, _ mcp.CallToolRequest, args EventArgs) (domain.Event, error) {
	ev, err := s.engine.Event(ctx, s.ownerFrom(ctx), args.EventID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("get event failed: %w", err)
	}
	return *ev, nil
}

// FieldInfo describes one catalog field to clients.
type FieldInfo struct {
	Phase    domain.Phase `json:"phase"`
	Order    int          `json:"order"`
	Name     string       `json:"name"`
	Prompt   string       `json:"prompt"`
	Kind     domain.Kind  `json:"kind"`
	Optional bool         `json:"optional,omitempty"`
}

func describe(c *catalog.Catalog) []FieldInfo {
	out := make([]FieldInfo, 0, len(c.Parent)+len(c.Child))
	for _, f := range c.Parent {
		out = append(out, FieldInfo{domain.PhaseParent, f.Order, f.Name, f.Prompt, f.Kind, f.Optional})
	}
	for _, f := range c.Child {
		out = append(out, FieldInfo{domain.PhaseChildren, f.Order, f.Name, f.Prompt, f.Kind, f.Optional})
	}
	return out
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(CatalogURI, "Intake Field Catalog",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(describe(s.engine.Catalog()))
		if err != nil {
			return nil, fmt.Errorf("failed to describe catalog: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      CatalogURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
