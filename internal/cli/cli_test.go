package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/intake/internal/config"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
)

func buildApp(t *testing.T, mutate func(*config.Config)) (*App, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	app, err := Build(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app, cfg
}

func TestBuild(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		app, _ := buildApp(t, nil)
		assert.NotNil(t, app.Engine)
		assert.NotNil(t, app.Metrics)
		assert.Empty(t, app.closers)
	})

	t.Run("sqlite", func(t *testing.T) {
		app, _ := buildApp(t, func(c *config.Config) {
			c.Gateway.Driver = "sqlite"
			c.Gateway.SQLitePath = filepath.Join(t.TempDir(), "intake.db")
		})
		require.Len(t, app.closers, 1)

		resp, err := app.Engine.Advance(context.Background(), domain.Request{OwnerID: "organizer-1"})
		require.NoError(t, err)
		ev, err := app.Engine.Event(context.Background(), "organizer-1", resp.EventID)
		require.NoError(t, err)
		assert.Equal(t, domain.EventDraft, ev.Status)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		app, _ := buildApp(t, func(c *config.Config) {
			c.Store.Driver = "redis"
			c.Store.RedisAddr = mr.Addr()
			c.Metrics.Enabled = false
		})
		assert.Nil(t, app.Metrics)

		resp, err := app.Engine.Advance(context.Background(), domain.Request{OwnerID: "organizer-1"})
		require.NoError(t, err)
		assert.NotEmpty(t, mr.Keys(), "the draft lives in redis")

		resumed, err := app.Engine.Resume(context.Background(), "organizer-1", resp.SessionID)
		require.NoError(t, err)
		assert.Equal(t, resp.Token, resumed.Token)
	})
}

func TestBuild_FileStoreResumesAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	mutate := func(c *config.Config) {
		c.Store.Driver = "file"
		c.Store.FileDir = dir
		c.Store.EncryptionKey = key
	}
	ctx := context.Background()

	first, _ := buildApp(t, mutate)
	resp, err := first.Engine.Advance(ctx, domain.Request{OwnerID: "organizer-1"})
	require.NoError(t, err)
	_, err = first.Engine.Advance(ctx, domain.Request{
		SessionID: resp.SessionID, OwnerID: "organizer-1", Token: resp.Token, Message: "DevHack 2025",
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, resp.SessionID+".json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "DevHack", "drafts are sealed at rest")

	second, _ := buildApp(t, mutate)
	resumed, err := second.Engine.Resume(ctx, "organizer-1", resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "p.1", resumed.Token)
}

func TestBuild_BadEncryptionKey(t *testing.T) {
	cfg := config.Default()
	cfg.Store.EncryptionKey = "c2hvcnQ="
	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.ErrorContains(t, err, "encryption_key")
}

func TestBuild_GenAIRequiresKey(t *testing.T) {
	cfg := config.Default()
	cfg.Oracle.Provider = "genai"
	_, err := Build(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestChat_JSONLines(t *testing.T) {
	app, _ := buildApp(t, nil)
	var out bytes.Buffer

	err := Chat(context.Background(), app, ChatOptions{
		Owner: "organizer-1",
		JSON:  true,
		In:    strings.NewReader("\"DevHack 2025\"\n{\"message\": \"Acme Labs\"}\n"),
		Out:   &out,
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	var last domain.Response
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &last))
	assert.Equal(t, "p.2", last.Token)
	assert.Contains(t, out.String(), "Progress saved")
}

func TestChat_Text(t *testing.T) {
	app, _ := buildApp(t, nil)
	var out bytes.Buffer

	err := Chat(context.Background(), app, ChatOptions{
		Owner: "organizer-1",
		In:    strings.NewReader("DevHack 2025\n/quit\n"),
		Out:   &out,
	})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Let's set up your hackathon.")
	assert.Contains(t, out.String(), "Progress saved")
}

func TestChat_RequiresOwner(t *testing.T) {
	app, _ := buildApp(t, nil)
	err := Chat(context.Background(), app, ChatOptions{Quiet: true, In: strings.NewReader(""), Out: &bytes.Buffer{}})
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestServe(t *testing.T) {
	app, cfg := buildApp(t, nil)
	srv, err := NewServer(app, cfg)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, app, srv, ln, time.Second) }()

	res, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post("http://"+ln.Addr().String()+"/v1/sessions", "application/json", nil)
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewServer_RequiresSecret(t *testing.T) {
	app, cfg := buildApp(t, nil)
	cfg.Auth.JWTSecret = ""
	_, err := NewServer(app, cfg)
	assert.Error(t, err)
}

func TestServeMCP_UnknownTransport(t *testing.T) {
	app, cfg := buildApp(t, nil)
	assert.ErrorContains(t, ServeMCP(context.Background(), app, cfg, "carrier-pigeon"), "unknown transport")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	logger.Debug("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	_, err = NewLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
}
