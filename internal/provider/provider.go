// Package provider defines the language-model backend boundary: a normalized
// request/response model, a closed provider-kind enum, and a registry
// resolved once at startup so routing never dispatches on raw strings.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiscogo/fisco/internal/chat"
)

// Kind is the closed set of provider backends.
type Kind string

// Provider kinds. Mock backs tests and key-less dev environments.
const (
	KindOpenAI    Kind = "openai"
	KindAnthropic Kind = "anthropic"
	KindMock      Kind = "mock"
)

// ErrUnknownProvider is returned by Registry.Get for unregistered kinds.
var ErrUnknownProvider = errors.New("unknown provider")

// ToolDefinition declaratively exposes a callable function to the model.
// Parameters is a JSON Schema object (minimal subset expected).
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Request captures the normalized model input produced by the pipeline.
type Request struct {
	Messages    []chat.Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// TokenUsage captures token statistics for one completion.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the final result of one completion attempt.
type Response struct {
	Content         string          `json:"content"`
	ToolCalls       []chat.ToolCall `json:"tool_calls,omitempty"`
	Model           string          `json:"model"`
	Provider        Kind            `json:"provider"`
	Usage           TokenUsage      `json:"usage"`
	CostEstimateEUR float64         `json:"cost_estimate_eur"`
}

// Chunk is one streaming delta. Done marks end of stream; the terminal chunk
// carries no content.
type Chunk struct {
	ContentDelta string `json:"content_delta"`
	Done         bool   `json:"done"`
}

// StreamFunc receives streaming chunks. Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk Chunk) error

// Provider is the outbound generation boundary. Implementations must report
// a stable Kind usable as a cache and metrics dimension, and must honor
// context cancellation mid-call.
type Provider interface {
	// Complete runs one buffered completion against the named model.
	Complete(ctx context.Context, model string, req Request) (*Response, error)

	// Stream runs one streaming completion, invoking fn per delta. The
	// final accumulated response is returned after the stream ends.
	Stream(ctx context.Context, model string, req Request, fn StreamFunc) (*Response, error)

	// Kind identifies the backend.
	Kind() Kind
}

// Registry resolves provider kinds to implementations. Built once at
// startup; read-only afterwards, safe for concurrent use.
type Registry struct {
	providers map[Kind]Provider
}

// NewRegistry builds the lookup table. Later registrations of the same kind
// override earlier ones.
func NewRegistry(providers ...Provider) *Registry {
	m := make(map[Kind]Provider, len(providers))
	for _, p := range providers {
		m[p.Kind()] = p
	}
	return &Registry{providers: m}
}

// Get resolves a kind. Returns ErrUnknownProvider (wrapped) when the kind
// was never registered.
func (r *Registry) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, kind)
	}
	return p, nil
}

// Kinds lists the registered provider kinds.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	return kinds
}
