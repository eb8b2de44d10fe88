package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDefaultRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultRetryConfig()

	if cfg.InitialInterval <= 0 {
		t.Errorf("InitialInterval should be positive, got %v", cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		t.Error("MaxInterval should be >= InitialInterval")
	}
}

func TestRetryableError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "rate limit error",
			err:      errors.New("rate limit exceeded"),
			expected: true,
		},
		{
			name:     "429 status code",
			err:      errors.New("HTTP 429: Too Many Requests"),
			expected: true,
		},
		{
			name:     "overloaded error",
			err:      errors.New("overloaded_error: try again later"),
			expected: true,
		},
		{
			name:     "503 unavailable",
			err:      errors.New("503 Service Unavailable"),
			expected: true,
		},
		{
			name:     "connection reset",
			err:      errors.New("connection reset by peer"),
			expected: true,
		},
		{
			name:     "timeout error",
			err:      errors.New("request timeout"),
			expected: true,
		},
		{
			name:     "open circuit is retryable",
			err:      fmt.Errorf("openai: %w", ErrCircuitOpen),
			expected: true,
		},
		{
			name:     "context canceled is terminal",
			err:      context.Canceled,
			expected: false,
		},
		{
			name:     "deadline exceeded is terminal",
			err:      fmt.Errorf("attempt: %w", context.DeadlineExceeded),
			expected: false,
		},
		{
			name:     "invalid API key",
			err:      errors.New("invalid API key"),
			expected: false,
		},
		{
			name:     "400 bad request",
			err:      errors.New("HTTP 400 Bad Request"),
			expected: false,
		},
		{
			name:     "case insensitive rate limit",
			err:      errors.New("RATE LIMIT reached"),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := retryableError(tt.err)
			if got != tt.expected {
				t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
