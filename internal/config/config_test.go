package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "intake.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.NeedsAWS())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
log:
  level: debug
  format: json
http:
  addr: ":9090"
  heartbeat: 5s
  cors_origins: [https://app.example.com]
gateway:
  driver: dynamodb
  dynamo_table: hackathons
store:
  driver: redis
  redis_addr: redis:6379
intake:
  max_attempts: 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.Heartbeat)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, "hackathons", cfg.Gateway.DynamoTable)
	assert.Equal(t, 5, cfg.Gateway.DynamoRetries, "untouched keys keep their default")
	assert.Equal(t, "redis:6379", cfg.Store.RedisAddr)
	assert.Equal(t, 3, cfg.Intake.MaxAttempts)
	assert.True(t, cfg.NeedsAWS())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "http:\n  addr: \":9090\"\n")
	t.Setenv("INTAKE_HTTP_ADDR", ":7070")
	t.Setenv("INTAKE_AUTH_JWT_SECRET", "s3cret")
	t.Setenv("INTAKE_HTTP_CORS_ORIGINS", "https://a.example.com,https://b.example.com")
	t.Setenv("INTAKE_STORE_LOCK_TTL", "45s")
	t.Setenv("INTAKE_INTAKE_MAX_ATTEMPTS", "4")
	t.Setenv("INTAKE_METRICS_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.HTTP.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 45*time.Second, cfg.Store.LockTTL)
	assert.Equal(t, 4, cfg.Intake.MaxAttempts)
	assert.False(t, cfg.Metrics.Enabled)
	assert.NoError(t, cfg.ValidateServer())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "http:\n  adress: \":1\"\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(writeFile(t, "http: [not, a, map]\n"))
	assert.Error(t, err)

	t.Setenv("INTAKE_HTTP_HEARTBEAT", "soon")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"unknown gateway", func(c *Config) { c.Gateway.Driver = "postgres" }, "unknown gateway"},
		{"dynamodb without table", func(c *Config) { c.Gateway.Driver = "dynamodb" }, "dynamo_table"},
		{"sqlite without path", func(c *Config) { c.Gateway.Driver = "sqlite"; c.Gateway.SQLitePath = "" }, "sqlite_path"},
		{"redis without address", func(c *Config) { c.Store.Driver = "redis"; c.Store.RedisAddr = "" }, "redis_addr"},
		{"genai without key", func(c *Config) { c.Oracle.Provider = "genai" }, "api_key"},
		{"eventbridge without bus", func(c *Config) { c.Notifier.Driver = "eventbridge" }, "notifier.bus"},
		{"negative attempts", func(c *Config) { c.Intake.MaxAttempts = -1 }, "max_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestValidateServer_RequiresSecret(t *testing.T) {
	cfg := Default()
	assert.ErrorContains(t, cfg.ValidateServer(), "jwt_secret")

	cfg.Auth.JWTSecret = "x"
	assert.NoError(t, cfg.ValidateServer())
}
