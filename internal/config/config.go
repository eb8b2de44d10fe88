// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.fisco/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Providers: OpenAI/Anthropic API keys, per-strategy model selection
//   - Routing: cost ceiling, confidence threshold, retry budget
//   - Storage: PostgreSQL checkpoint store, Redis response cache
//   - Pipeline: tool loop bounds, streaming thresholds
//
// Security: sensitive data (passwords, API keys) are never logged; masked in
// MarshalJSON and String.
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required provider API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidEnvironment indicates an unknown deployment environment.
	ErrInvalidEnvironment = errors.New("invalid environment")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidMaxRetries indicates the retry budget is out of range.
	ErrInvalidMaxRetries = errors.New("invalid max retries")

	// ErrInvalidConfidenceThreshold indicates the golden-answer confidence
	// threshold is outside [0, 1].
	ErrInvalidConfidenceThreshold = errors.New("invalid confidence threshold")

	// ErrInvalidCostCeiling indicates the global cost ceiling is not positive.
	ErrInvalidCostCeiling = errors.New("invalid cost ceiling")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")
)

// Deployment environments used in Config.Environment.
const (
	EnvDev        = "dev"
	EnvProduction = "production"
)

const (
	// DefaultConfidenceThreshold is the minimum golden-answer confidence
	// required to serve the fast path.
	DefaultConfidenceThreshold = 0.90

	// DefaultGlobalCostCeilingEUR caps any routing decision's budget.
	DefaultGlobalCostCeilingEUR = 0.50

	// DefaultMaxRetries is the provider attempt budget per request.
	DefaultMaxRetries = 4

	// DefaultMaxToolIterations bounds the tool loop when it does not share
	// the generation retry budget.
	DefaultMaxToolIterations = 4

	// DefaultStreamDedupThreshold: streamed chunks longer than this are
	// treated as whole-message duplicates from the tool loop and suppressed.
	DefaultStreamDedupThreshold = 480
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
// When adding new sensitive fields (passwords, API keys, tokens), update
// MarshalJSON.
type Config struct {
	// Deployment
	Environment string `mapstructure:"environment" json:"environment"` // "dev" (default), "production"
	Strict      bool   `mapstructure:"strict" json:"strict"`           // strict mode surfaces checkpoint pool failures

	// Provider configuration
	OpenAIAPIKey    string `mapstructure:"openai_api_key" json:"openai_api_key"`       // SENSITIVE: masked in MarshalJSON
	AnthropicAPIKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"` // SENSITIVE: masked in MarshalJSON
	Temperature     float64 `mapstructure:"temperature" json:"temperature"`
	MaxTokens       int     `mapstructure:"max_tokens" json:"max_tokens"`

	// Routing configuration
	DefaultStrategy     string  `mapstructure:"default_strategy" json:"default_strategy"` // used when no classification exists
	GlobalCostCeiling   float64 `mapstructure:"global_cost_ceiling_eur" json:"global_cost_ceiling_eur"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" json:"confidence_threshold"`
	MaxRetries          int     `mapstructure:"max_retries" json:"max_retries"`
	RateLimitRPS        float64 `mapstructure:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst      int     `mapstructure:"rate_limit_burst" json:"rate_limit_burst"`

	// Pipeline configuration
	ToolLoopSharedBudget bool  `mapstructure:"tool_loop_shared_budget" json:"tool_loop_shared_budget"`
	MaxToolIterations    int   `mapstructure:"max_tool_iterations" json:"max_tool_iterations"`
	StreamDedupThreshold int   `mapstructure:"stream_dedup_threshold" json:"stream_dedup_threshold"`
	RetrieveTopK         int   `mapstructure:"retrieve_top_k" json:"retrieve_top_k"`
	KBEpoch              int64 `mapstructure:"kb_epoch" json:"kb_epoch"` // current knowledge base version marker

	// Checkpoint storage (PostgreSQL)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Response cache (Redis). Empty RedisAddr disables Redis and falls back
	// to the in-process cache.
	RedisAddr       string `mapstructure:"redis_addr" json:"redis_addr"`
	RedisPassword   string `mapstructure:"redis_password" json:"redis_password"` // SENSITIVE: masked in MarshalJSON
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds" json:"cache_ttl_seconds"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".fisco")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".") // Also support current directory

	setDefaults()
	bindEnvVariables()

	if err := viper.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Fail fast on invalid configuration.
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults() {
	viper.SetDefault("environment", EnvDev)
	viper.SetDefault("strict", false)

	// Provider defaults
	viper.SetDefault("temperature", 0.3)
	viper.SetDefault("max_tokens", 2048)

	// Routing defaults
	viper.SetDefault("default_strategy", "balanced")
	viper.SetDefault("global_cost_ceiling_eur", DefaultGlobalCostCeilingEUR)
	viper.SetDefault("confidence_threshold", DefaultConfidenceThreshold)
	viper.SetDefault("max_retries", DefaultMaxRetries)
	viper.SetDefault("rate_limit_rps", 10)
	viper.SetDefault("rate_limit_burst", 30)

	// Pipeline defaults
	viper.SetDefault("tool_loop_shared_budget", true)
	viper.SetDefault("max_tool_iterations", DefaultMaxToolIterations)
	viper.SetDefault("stream_dedup_threshold", DefaultStreamDedupThreshold)
	viper.SetDefault("retrieve_top_k", 5)
	viper.SetDefault("kb_epoch", 1)

	// PostgreSQL defaults (local development database)
	viper.SetDefault("postgres_host", "localhost")
	viper.SetDefault("postgres_port", 5432)
	viper.SetDefault("postgres_user", "fisco")
	viper.SetDefault("postgres_password", "fisco_dev_password")
	viper.SetDefault("postgres_db_name", "fisco")
	viper.SetDefault("postgres_ssl_mode", "disable")

	// Redis defaults (empty addr = in-process cache)
	viper.SetDefault("redis_addr", "")
	viper.SetDefault("cache_ttl_seconds", 3600)
}

// bindEnvVariables binds sensitive environment variables explicitly.
func bindEnvVariables() {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := viper.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("openai_api_key", "OPENAI_API_KEY")
	mustBind("anthropic_api_key", "ANTHROPIC_API_KEY")
	mustBind("environment", "FISCO_ENV")
	mustBind("strict", "FISCO_STRICT")
	mustBind("postgres_password", "FISCO_POSTGRES_PASSWORD")
	mustBind("redis_addr", "FISCO_REDIS_ADDR")
	mustBind("redis_password", "FISCO_REDIS_PASSWORD")
}

// ProductionLike reports whether the deployment environment enables
// production-only behavior (forced failover reselection in the router).
func (c *Config) ProductionLike() bool {
	return c.Environment == EnvProduction
}

// maskedValue is the placeholder for masked sensitive data.
// Full-width blocks avoid substring matching against real secret fragments.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Shows first 2 and last 2 characters for secrets longer than 8 chars,
// fully masks shorter ones to prevent substring attacks.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
//
// Sensitive fields masked:
//   - OpenAIAPIKey, AnthropicAPIKey
//   - PostgresPassword, RedisPassword
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.OpenAIAPIKey = maskSecret(a.OpenAIAPIKey)
	a.AnthropicAPIKey = maskSecret(a.AnthropicAPIKey)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.RedisPassword = maskSecret(a.RedisPassword)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
