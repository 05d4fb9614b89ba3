// Package config loads the settings of the intake binaries.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// INTAKE_* environment variables. Nested keys map to the environment by
// joining the path with underscores, so auth.jwt_secret is read from
// INTAKE_AUTH_JWT_SECRET.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INTAKE"

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	MCP      MCPConfig      `mapstructure:"mcp"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Store    StoreConfig    `mapstructure:"store"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Intake   IntakeConfig   `mapstructure:"intake"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
	Leeway    time.Duration `mapstructure:"leeway"`
}

type MCPConfig struct {
	// Owner of stdio sessions. SSE connections authenticate with a bearer token.
	Owner   string `mapstructure:"owner"`
	Addr    string `mapstructure:"addr"`
	BaseURL string `mapstructure:"base_url"`
}

// GatewayConfig selects the durable store: memory, sqlite or dynamodb.
type GatewayConfig struct {
	Driver         string `mapstructure:"driver"`
	SQLitePath     string `mapstructure:"sqlite_path"`
	DynamoTable    string `mapstructure:"dynamo_table"`
	DynamoRetries  int    `mapstructure:"dynamo_retries"`
	DynamoEndpoint string `mapstructure:"dynamo_endpoint"`
	Region         string `mapstructure:"region"`
}

// StoreConfig selects the draft store: memory, file or redis.
type StoreConfig struct {
	Driver        string        `mapstructure:"driver"`
	FileDir       string        `mapstructure:"file_dir"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`

	// EncryptionKey (base64, 32 bytes) seals drafts at rest. FallbackKeys
	// still decrypt drafts written before a rotation.
	EncryptionKey string   `mapstructure:"encryption_key"`
	FallbackKeys  []string `mapstructure:"fallback_keys"`
}

// OracleConfig selects the extraction model: none or genai.
type OracleConfig struct {
	Provider         string        `mapstructure:"provider"`
	APIKey           string        `mapstructure:"api_key"`
	Model            string        `mapstructure:"model"`
	BaseURL          string        `mapstructure:"base_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerTimeout   time.Duration `mapstructure:"breaker_timeout"`
	BreakerThreshold float64       `mapstructure:"breaker_threshold"`
}

// NotifierConfig selects the completion publisher: none or eventbridge.
type NotifierConfig struct {
	Driver string `mapstructure:"driver"`
	Bus    string `mapstructure:"bus"`
	Source string `mapstructure:"source"`
}

type IntakeConfig struct {
	// MaxAttempts flags a field as escalated after that many rejections. 0 disables it.
	MaxAttempts  int `mapstructure:"max_attempts"`
	MaxInputSize int `mapstructure:"max_input_size"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		Log:  LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{Addr: ":8080", Heartbeat: 15 * time.Second, ShutdownTimeout: 10 * time.Second},
		Auth: AuthConfig{Leeway: 30 * time.Second},
		MCP:  MCPConfig{Owner: "local", Addr: ":8081", BaseURL: "http://localhost:8081"},
		Gateway: GatewayConfig{
			Driver:        "memory",
			SQLitePath:    "intake.db",
			DynamoRetries: 5,
		},
		Store: StoreConfig{
			Driver:    "memory",
			FileDir:   filepath.Join(".intake", "sessions"),
			RedisAddr: "localhost:6379",
			TTL:       7 * 24 * time.Hour,
			LockTTL:   30 * time.Second,
		},
		Oracle: OracleConfig{
			Provider:         "none",
			Timeout:          10 * time.Second,
			BreakerTimeout:   30 * time.Second,
			BreakerThreshold: 0.8,
		},
		Notifier: NotifierConfig{Driver: "none", Source: "intake"},
		Intake:   IntakeConfig{MaxInputSize: 4096},
		Metrics:  MetricsConfig{Enabled: true, Namespace: "intake"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (skipped
// when empty) and the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.merge(data); err != nil {
			return nil, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	return decode(raw, c)
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	raw := map[string]any{}
	for _, path := range keys(reflect.TypeOf(*c), nil) {
		name := EnvPrefix + "_" + strings.ToUpper(strings.Join(path, "_"))
		val, ok := lookup(name)
		if !ok {
			continue
		}
		node := raw
		for _, k := range path[:len(path)-1] {
			next, ok := node[k].(map[string]any)
			if !ok {
				next = map[string]any{}
				node[k] = next
			}
			node = next
		}
		node[path[len(path)-1]] = val
	}
	if len(raw) == 0 {
		return nil
	}
	if err := decode(raw, c); err != nil {
		return fmt.Errorf("invalid environment override: %w", err)
	}
	return nil
}

func decode(raw map[string]any, out *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

// keys lists the mapstructure path of every leaf field of t.
func keys(t reflect.Type, prefix []string) [][]string {
	var out [][]string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("mapstructure")
		if name == "" || name == "-" {
			continue
		}
		path := append(append([]string(nil), prefix...), name)
		if f.Type.Kind() == reflect.Struct && f.Type != reflect.TypeOf(time.Duration(0)) {
			out = append(out, keys(f.Type, path)...)
			continue
		}
		out = append(out, path)
	}
	return out
}

// Validate rejects combinations no binary can run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch c.Gateway.Driver {
	case "memory":
	case "sqlite":
		if c.Gateway.SQLitePath == "" {
			errs = append(errs, errors.New("gateway.sqlite_path is required for the sqlite gateway"))
		}
	case "dynamodb":
		if c.Gateway.DynamoTable == "" {
			errs = append(errs, errors.New("gateway.dynamo_table is required for the dynamodb gateway"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown gateway driver %q", c.Gateway.Driver))
	}
	switch c.Store.Driver {
	case "memory":
	case "file":
		if c.Store.FileDir == "" {
			errs = append(errs, errors.New("store.file_dir is required for the file store"))
		}
	case "redis":
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	switch c.Oracle.Provider {
	case "none":
	case "genai":
		if c.Oracle.APIKey == "" {
			errs = append(errs, errors.New("oracle.api_key is required for the genai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider))
	}
	switch c.Notifier.Driver {
	case "none":
	case "eventbridge":
		if c.Notifier.Bus == "" {
			errs = append(errs, errors.New("notifier.bus is required for the eventbridge notifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown notifier driver %q", c.Notifier.Driver))
	}
	if c.Intake.MaxAttempts < 0 {
		errs = append(errs, errors.New("intake.max_attempts cannot be negative"))
	}
	return errors.Join(errs...)
}

// ValidateServer additionally requires what the network servers need.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required to serve (INTAKE_AUTH_JWT_SECRET)")
	}
	return nil
}

// NeedsAWS reports whether any adapter talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.Gateway.Driver == "dynamodb" || c.Notifier.Driver == "eventbridge"
}
