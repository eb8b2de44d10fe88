package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fiscogo/fisco/internal/billing"
	"github.com/fiscogo/fisco/internal/cache"
	"github.com/fiscogo/fisco/internal/checkpoint"
	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/config"
	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/knowledge"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/pipeline"
	"github.com/fiscogo/fisco/internal/provider"
	"github.com/fiscogo/fisco/internal/provider/anthropic"
	"github.com/fiscogo/fisco/internal/provider/openai"
	"github.com/fiscogo/fisco/internal/router"
	"github.com/fiscogo/fisco/internal/tools"
)

const (
	historyCacheSize  = 256
	responseCacheSize = 1024
	billingBufferSize = 256
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config) (_ *App, retErr error) {
	logger := log.New(log.Config{JSON: cfg.ProductionLike()})
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	registry, err := provideProviders(cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Providers = registry

	rt, err := provideRouter(cfg, registry, logger)
	if err != nil {
		return nil, err
	}

	responseCache, redisClient, err := provideResponseCache(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.redis = redisClient

	checkpoints, pool, err := provideCheckpoints(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool

	history, err := cache.NewHistoryCache(historyCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating history cache: %w", err)
	}

	goldenStore := golden.NewMemoryStore()
	seeded := golden.SeedBuiltin(goldenStore)
	logger.Debug("golden answers seeded", "count", seeded)

	a.Billing = billing.NewLogRecorder(logger, billingBufferSize)

	p, err := pipeline.New(pipeline.Config{
		Classifier:  classify.NewLexicon(),
		GoldenStore: goldenStore,
		Epochs:      knowledge.StaticEpoch(cfg.KBEpoch),
		Searcher:    knowledge.NopSearcher{},
		Delta:       knowledge.NewDeltaDecider(logger),
		Router:      rt,
		Cache:       responseCache,
		Checkpoints: checkpoints,
		History:     history,
		Tools:       tools.Builtin(logger),
		Billing:     a.Billing,
		Logger:      logger,

		ConfidenceThreshold:  cfg.ConfidenceThreshold,
		Temperature:          cfg.Temperature,
		MaxTokens:            cfg.MaxTokens,
		RetrieveTopK:         cfg.RetrieveTopK,
		MaxRetries:           cfg.MaxRetries,
		ToolLoopSharedBudget: cfg.ToolLoopSharedBudget,
		MaxToolIterations:    cfg.MaxToolIterations,
		StreamDedupThreshold: cfg.StreamDedupThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}
	a.Pipeline = p

	return a, nil
}

// provideProviders builds the backend registry from configured credentials.
// Dev environments fill missing vendors with mocks so every routing strategy
// stays servable; production registers real adapters only (config validation
// guarantees at least one credential).
func provideProviders(cfg *config.Config, logger log.Logger) (*provider.Registry, error) {
	var providers []provider.Provider

	if cfg.OpenAIAPIKey != "" {
		providers = append(providers, openai.New(cfg.OpenAIAPIKey))
	} else if !cfg.ProductionLike() {
		logger.Warn("OPENAI_API_KEY not set, using mock provider", "kind", provider.KindOpenAI)
		providers = append(providers, provider.NewMock(provider.KindOpenAI))
	}

	if cfg.AnthropicAPIKey != "" {
		providers = append(providers, anthropic.New(cfg.AnthropicAPIKey))
	} else if !cfg.ProductionLike() {
		logger.Warn("ANTHROPIC_API_KEY not set, using mock provider", "kind", provider.KindAnthropic)
		providers = append(providers, provider.NewMock(provider.KindAnthropic))
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no provider available", config.ErrMissingAPIKey)
	}
	return provider.NewRegistry(providers...), nil
}

func provideRouter(cfg *config.Config, registry *provider.Registry, logger log.Logger) (*router.Router, error) {
	selector := router.NewSelector(
		router.Strategy(cfg.DefaultStrategy),
		cfg.GlobalCostCeiling,
		registry,
	)

	rt, err := router.New(router.Config{
		Registry:       registry,
		Selector:       selector,
		MaxRetries:     cfg.MaxRetries,
		ProductionLike: cfg.ProductionLike(),
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}
	return rt, nil
}

// provideResponseCache builds the Redis-backed cache when an address is
// configured, falling back to the in-process LRU otherwise. A Redis that is
// configured but unreachable is fatal in strict mode only.
func provideResponseCache(ctx context.Context, cfg *config.Config, logger log.Logger) (cache.ResponseCache, *redis.Client, error) {
	if cfg.RedisAddr == "" {
		mem, err := cache.NewMemoryCache(responseCacheSize)
		if err != nil {
			return nil, nil, fmt.Errorf("creating memory cache: %w", err)
		}
		return mem, nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})

	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	rc, err := cache.NewRedisCache(client, ttl, logger)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err = rc.Ping(pingCtx)
	}
	if err != nil {
		_ = client.Close()
		if cfg.Strict {
			return nil, nil, fmt.Errorf("connecting to redis %q: %w", cfg.RedisAddr, err)
		}
		logger.Warn("redis unavailable, using in-process response cache",
			"addr", cfg.RedisAddr, "error", err)
		mem, memErr := cache.NewMemoryCache(responseCacheSize)
		if memErr != nil {
			return nil, nil, fmt.Errorf("creating memory cache: %w", memErr)
		}
		return mem, nil, nil
	}

	return rc, client, nil
}

// provideCheckpoints migrates the schema and builds the PostgreSQL-backed
// checkpoint store. An unreachable database is fatal in strict mode; in
// non-strict mode the app runs without conversation persistence.
func provideCheckpoints(ctx context.Context, cfg *config.Config, logger log.Logger) (checkpoint.Store, *pgxpool.Pool, error) {
	store, pool, err := connectCheckpoints(ctx, cfg, logger)
	if err != nil {
		if cfg.Strict {
			return nil, nil, fmt.Errorf("checkpoint store: %w", err)
		}
		logger.Warn("checkpoint store unavailable, conversations will not persist", "error", err)
		return nil, nil, nil
	}
	return store, pool, nil
}

func connectCheckpoints(ctx context.Context, cfg *config.Config, logger log.Logger) (checkpoint.Store, *pgxpool.Pool, error) {
	dsn := cfg.PostgresDSN()
	if err := checkpoint.Migrate(dsn, logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	store, err := checkpoint.NewPostgres(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool, nil
}
