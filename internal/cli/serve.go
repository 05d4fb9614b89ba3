package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/intake/internal/config"
	httpadapter "github.com/aretw0/intake/pkg/adapters/http"
	"github.com/aretw0/intake/pkg/adapters/mcp"
	"github.com/aretw0/intake/pkg/runner"
)

// NewAuth builds the bearer token verifier from cfg.
func NewAuth(cfg config.AuthConfig) (*httpadapter.JWTAuth, error) {
	return httpadapter.NewJWTAuth(httpadapter.JWTConfig{
		Secret:   cfg.JWTSecret,
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
	})
}

// NewServer builds the HTTP server of the intake API.
func NewServer(app *App, cfg *config.Config) (*http.Server, error) {
	auth, err := NewAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}
	opts := []httpadapter.Option{
		httpadapter.WithLogger(app.Logger),
		httpadapter.WithCORS(cfg.HTTP.CORSOrigins...),
		httpadapter.WithSanitizer(runner.Sanitizer{MaxSize: cfg.Intake.MaxInputSize}),
		httpadapter.WithHeartbeat(cfg.HTTP.Heartbeat),
	}
	if app.Metrics != nil {
		opts = append(opts, httpadapter.WithMetrics(app.Metrics))
	}
	handler, err := httpadapter.NewHandler(app.Engine, auth, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP handler: %w", err)
	}
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// Serve listens on ln until ctx is done, then drains in-flight requests for at
// most timeout.
func Serve(ctx context.Context, app *App, srv *http.Server, ln net.Listener, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.Logger.Info("Intake API listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info("Shutting down", "timeout", timeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown did not complete in %v: %w", timeout, err)
		}
		return nil
	})
	return g.Wait()
}

// ServeMCP runs the MCP server over stdio or SSE.
func ServeMCP(ctx context.Context, app *App, cfg *config.Config, transport string) error {
	opts := []mcp.Option{
		mcp.WithOwner(cfg.MCP.Owner),
		mcp.WithLogger(app.Logger),
		mcp.WithSanitizer(runner.Sanitizer{MaxSize: cfg.Intake.MaxInputSize}),
	}
	switch transport {
	case "stdio":
		return mcp.NewServer(app.Engine, opts...).ServeStdio()
	case "sse":
		auth, err := NewAuth(cfg.Auth)
		if err != nil {
			return err
		}
		opts = append(opts, mcp.WithAuthenticator(auth))
		return mcp.NewServer(app.Engine, opts...).ServeSSE(ctx, cfg.MCP.Addr, cfg.MCP.BaseURL)
	}
	return fmt.Errorf("unknown transport %q (use stdio or sse)", transport)
}
