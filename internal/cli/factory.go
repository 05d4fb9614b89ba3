package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/config"
	"github.com/aretw0/intake/pkg/adapters/dynamodb"
	"github.com/aretw0/intake/pkg/adapters/eventbridge"
	"github.com/aretw0/intake/pkg/adapters/file"
	"github.com/aretw0/intake/pkg/adapters/genai"
	"github.com/aretw0/intake/pkg/adapters/memory"
	"github.com/aretw0/intake/pkg/adapters/redis"
	"github.com/aretw0/intake/pkg/adapters/sqlite"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/extraction"
	"github.com/aretw0/intake/pkg/observability"
	"github.com/aretw0/intake/pkg/persistence/middleware"
	"github.com/aretw0/intake/pkg/ports"
)

// App is an engine wired from configuration, plus what must be released
// when the process exits.
type App struct {
	Engine  *intake.Engine
	Metrics *observability.Metrics
	Logger  *slog.Logger

	closers []io.Closer
}

// Close releases every backend opened by Build.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

// Build selects the adapters named by cfg and creates the engine.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (app *App, err error) {
	app = &App{Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	hooks := createDebugHooks(logger)
	if cfg.Metrics.Enabled {
		app.Metrics = observability.NewMetrics(cfg.Metrics.Namespace)
		hooks = hooks.Merge(app.Metrics.Hooks())
	}

	opts := []intake.Option{
		intake.WithLogger(logger),
		intake.WithLifecycleHooks(hooks),
		intake.WithMaxAttempts(cfg.Intake.MaxAttempts),
	}

	var awsCfg aws.Config
	if cfg.NeedsAWS() {
		awsCfg, err = loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	gw, err := app.gateway(ctx, cfg, awsCfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, intake.WithGateway(gw))
	drafts, err := app.drafts(cfg)
	if err != nil {
		return nil, err
	}
	opts = append(opts, drafts...)

	if cfg.Oracle.Provider == "genai" {
		oracle, err := genai.New(ctx, genai.Config{
			APIKey:  cfg.Oracle.APIKey,
			Model:   cfg.Oracle.Model,
			BaseURL: cfg.Oracle.BaseURL,
		})
		if err != nil {
			return nil, err
		}
		opts = append(opts, intake.WithOracle(oracle))
	}
	breaker := extraction.DefaultBreakerConfig()
	breaker.Timeout = cfg.Oracle.BreakerTimeout
	breaker.FailureThreshold = cfg.Oracle.BreakerThreshold
	opts = append(opts, intake.WithExtractionOptions(
		extraction.WithTimeout(cfg.Oracle.Timeout),
		extraction.WithBreaker(breaker),
	))

	if cfg.Notifier.Driver == "eventbridge" {
		opts = append(opts, intake.WithNotifier(eventbridge.New(
			awseventbridge.NewFromConfig(awsCfg),
			cfg.Notifier.Bus,
			eventbridge.WithSource(cfg.Notifier.Source),
			eventbridge.WithLogger(logger),
		)))
	}

	app.Engine, err = intake.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	logger.Debug("Engine ready",
		"gateway", cfg.Gateway.Driver,
		"store", cfg.Store.Driver,
		"oracle", cfg.Oracle.Provider,
		"notifier", cfg.Notifier.Driver,
	)
	return app, nil
}

func loadAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Gateway.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Gateway.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

func (a *App) gateway(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (ports.Gateway, error) {
	switch cfg.Gateway.Driver {
	case "sqlite":
		gw, err := sqlite.Open(ctx, cfg.Gateway.SQLitePath, sqlite.WithLogger(a.Logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, gw)
		return gw, nil
	case "dynamodb":
		client := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
			if cfg.Gateway.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Gateway.DynamoEndpoint)
			}
		})
		return dynamodb.New(client, cfg.Gateway.DynamoTable,
			dynamodb.WithRetries(cfg.Gateway.DynamoRetries),
			dynamodb.WithLogger(a.Logger),
		), nil
	default:
		return memory.NewGateway(), nil
	}
}

// drafts returns the draft store and lock options. Redis shares both across
// instances; memory and file only serialize turns within this process.
func (a *App) drafts(cfg *config.Config) ([]intake.Option, error) {
	var (
		store ports.DraftStore
		opts  []intake.Option
	)
	switch cfg.Store.Driver {
	case "file":
		store = file.New(cfg.Store.FileDir)
	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
		})
		rs := redis.NewFromClient(client, redis.WithTTL(cfg.Store.TTL))
		a.closers = append(a.closers, rs)
		store = rs
		opts = append(opts,
			intake.WithLocker(redis.NewLocker(client, "intake:lock:")),
			intake.WithLockTTL(cfg.Store.LockTTL),
		)
	default:
		store = memory.NewStore()
	}

	if cfg.Store.EncryptionKey != "" {
		enc, err := encryption(cfg.Store)
		if err != nil {
			return nil, err
		}
		store = middleware.Chain(store, enc)
	}
	return append(opts, intake.WithDraftStore(store)), nil
}

func encryption(cfg config.StoreConfig) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(k)
		if err != nil {
			return nil, fmt.Errorf("store.fallback_keys[%d]: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(ec), nil
}

func createDebugHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnFieldAccepted: func(ctx context.Context, e *domain.FieldEvent) {
			logger.Debug("Field accepted", "session_id", e.SessionID, "phase", e.Phase, "field", e.Field, "child", e.Child)
		},
		OnFieldRejected: func(ctx context.Context, e *domain.FieldEvent) {
			logger.Debug("Field rejected", "session_id", e.SessionID, "field", e.Field, "attempts", e.Attempts, "reason", e.Reason)
		},
		OnPhaseChange: func(ctx context.Context, e *domain.PhaseEvent) {
			logger.Debug("Phase change", "session_id", e.SessionID, "from", e.From, "to", e.To)
		},
		OnExtraction: func(ctx context.Context, e *domain.ExtractionEvent) {
			logger.Debug("Extraction", "kind", e.Kind, "ok", e.OK, "duration", e.Duration)
		},
	}
}
