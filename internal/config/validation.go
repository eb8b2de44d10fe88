package config

import (
	"fmt"
	"strings"
)

// Validate checks configuration values for consistency.
// Returns a sentinel error (wrapped with context) on the first violation so
// callers can use errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Environment {
	case EnvDev, EnvProduction:
	default:
		return fmt.Errorf("%w: %q (expected %q or %q)",
			ErrInvalidEnvironment, c.Environment, EnvDev, EnvProduction)
	}

	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %.2f (expected 0.0-2.0)", ErrInvalidTemperature, c.Temperature)
	}

	if c.MaxTokens <= 0 || c.MaxTokens > 128_000 {
		return fmt.Errorf("%w: %d (expected 1-128000)", ErrInvalidMaxTokens, c.MaxTokens)
	}

	if c.MaxRetries < 1 || c.MaxRetries > 10 {
		return fmt.Errorf("%w: %d (expected 1-10)", ErrInvalidMaxRetries, c.MaxRetries)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: %.2f (expected 0.0-1.0)", ErrInvalidConfidenceThreshold, c.ConfidenceThreshold)
	}

	if c.GlobalCostCeiling <= 0 {
		return fmt.Errorf("%w: %.4f (expected > 0)", ErrInvalidCostCeiling, c.GlobalCostCeiling)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}

	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (expected 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}

	// Production requires at least one real provider credential; dev falls
	// back to the mock provider without keys.
	if c.Environment == EnvProduction && c.OpenAIAPIKey == "" && c.AnthropicAPIKey == "" {
		return fmt.Errorf("%w: production requires OPENAI_API_KEY or ANTHROPIC_API_KEY", ErrMissingAPIKey)
	}

	return nil
}

// PostgresDSN builds the connection string for the checkpoint store pool.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}
