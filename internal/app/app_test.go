package app

import (
	"context"
	"errors"
	"testing"

	"github.com/fiscogo/fisco/internal/config"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

func devConfig() *config.Config {
	return &config.Config{
		Environment:         config.EnvDev,
		Temperature:         0.3,
		MaxTokens:           2048,
		DefaultStrategy:     "balanced",
		GlobalCostCeiling:   0.50,
		ConfidenceThreshold: 0.90,
		MaxRetries:          4,
		RetrieveTopK:        5,
		KBEpoch:             1,
	}
}

func TestProvideProvidersDevFallsBackToMocks(t *testing.T) {
	t.Parallel()

	registry, err := provideProviders(devConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("provideProviders: %v", err)
	}

	for _, kind := range []provider.Kind{provider.KindOpenAI, provider.KindAnthropic} {
		if _, err := registry.Get(kind); err != nil {
			t.Errorf("kind %q not registered: %v", kind, err)
		}
	}
}

func TestProvideProvidersProductionRequiresKeys(t *testing.T) {
	t.Parallel()

	cfg := devConfig()
	cfg.Environment = config.EnvProduction

	_, err := provideProviders(cfg, log.NewNop())
	if !errors.Is(err, config.ErrMissingAPIKey) {
		t.Errorf("err = %v, want ErrMissingAPIKey", err)
	}
}

func TestProvideProvidersRealKeysSkipMocks(t *testing.T) {
	t.Parallel()

	cfg := devConfig()
	cfg.Environment = config.EnvProduction
	cfg.OpenAIAPIKey = "sk-test"

	registry, err := provideProviders(cfg, log.NewNop())
	if err != nil {
		t.Fatalf("provideProviders: %v", err)
	}
	if _, err := registry.Get(provider.KindOpenAI); err != nil {
		t.Errorf("openai not registered: %v", err)
	}
	// Production never substitutes mocks for missing vendors.
	if _, err := registry.Get(provider.KindAnthropic); err == nil {
		t.Error("anthropic should not be registered without a key in production")
	}
}

func TestProvideResponseCacheWithoutRedis(t *testing.T) {
	t.Parallel()

	c, client, err := provideResponseCache(context.Background(), devConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("provideResponseCache: %v", err)
	}
	if c == nil {
		t.Fatal("no cache returned")
	}
	if client != nil {
		t.Error("no redis client expected without an address")
	}
}

func TestProvideRouter(t *testing.T) {
	t.Parallel()

	registry, err := provideProviders(devConfig(), log.NewNop())
	if err != nil {
		t.Fatalf("provideProviders: %v", err)
	}
	rt, err := provideRouter(devConfig(), registry, log.NewNop())
	if err != nil {
		t.Fatalf("provideRouter: %v", err)
	}
	if rt == nil {
		t.Fatal("nil router")
	}
}
