// Package pipeline implements the per-request decision graph: validation,
// privacy redaction, classification, the golden fast-path gate, knowledge
// retrieval with the freshness delta decision, routed generation with
// response caching, the bounded tool loop, and finalization.
//
// The same graph serves buffered and streaming execution. Buffered calls run
// to completion and return the full state; streaming calls additionally emit
// generation deltas, filtered for tool-loop duplicates, terminated by an
// explicit end-of-stream marker.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiscogo/fisco/internal/billing"
	"github.com/fiscogo/fisco/internal/cache"
	"github.com/fiscogo/fisco/internal/checkpoint"
	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/knowledge"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
	"github.com/fiscogo/fisco/internal/router"
	"github.com/fiscogo/fisco/internal/tools"
)

// Node identifies one state of the graph.
type Node string

// Graph nodes. Error400 and End are terminal.
const (
	NodeValidate     Node = "validate_request"
	NodePrivacy      Node = "privacy_check"
	NodePII          Node = "pii_check"
	NodeClassify     Node = "classify"
	NodeGoldenGate   Node = "golden_gate"
	NodeGoldenLookup Node = "golden_lookup"
	NodeRetrieve     Node = "retrieve"
	NodeKBDelta      Node = "kb_delta"
	NodeSelectPrompt Node = "select_prompt"
	NodeGenerate     Node = "generate_or_cache"
	NodeToolCheck    Node = "tool_check"
	NodeToolExecute  Node = "tool_execute"
	NodeFinalize     Node = "finalize"
	NodeEnd          Node = "end"
	NodeError400     Node = "error_400"
)

// Config wires the pipeline's collaborators and tuning knobs.
type Config struct {
	Classifier  classify.Classifier
	GoldenStore golden.Store
	Epochs      knowledge.EpochSource
	Searcher    knowledge.Searcher
	Delta       *knowledge.DeltaDecider
	Router      *router.Router
	Cache       cache.ResponseCache
	Checkpoints checkpoint.Store    // optional; nil runs without persistence
	History     *cache.HistoryCache // optional
	Tools       *tools.Registry
	Billing     billing.Recorder
	Logger      log.Logger

	ConfidenceThreshold  float64
	Temperature          float64
	MaxTokens            int
	RetrieveTopK         int
	MaxRetries           int
	ToolLoopSharedBudget bool
	MaxToolIterations    int
	StreamDedupThreshold int
}

func (c *Config) validate() error {
	if c.Classifier == nil {
		return errors.New("pipeline: classifier is required")
	}
	if c.Router == nil {
		return errors.New("pipeline: router is required")
	}
	if c.Cache == nil {
		return errors.New("pipeline: response cache is required")
	}
	if c.Searcher == nil {
		return errors.New("pipeline: searcher is required")
	}
	if c.Delta == nil {
		return errors.New("pipeline: delta decider is required")
	}
	if c.GoldenStore == nil {
		return errors.New("pipeline: golden store is required")
	}
	if c.Epochs == nil {
		return errors.New("pipeline: epoch source is required")
	}
	if c.Tools == nil {
		return errors.New("pipeline: tool registry is required")
	}
	return nil
}

// Pipeline executes the decision graph. Immutable after construction, safe
// for concurrent use; all mutable state is per-request.
type Pipeline struct {
	cfg Config
}

// New constructs a Pipeline, applying defaults for unset tuning knobs.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.Billing == nil {
		cfg.Billing = billing.NopRecorder{}
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.90
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.RetrieveTopK <= 0 {
		cfg.RetrieveTopK = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.MaxToolIterations <= 0 {
		cfg.MaxToolIterations = 4
	}
	if cfg.StreamDedupThreshold <= 0 {
		cfg.StreamDedupThreshold = 480
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes the graph buffered: it runs to completion and returns the
// full state. The returned error is non-nil only for abnormal termination
// (provider exhaustion or an invariant violation); handled errors such as
// validation failures terminate normally with a structured final response.
func (p *Pipeline) Run(ctx context.Context, req Request) (*State, error) {
	return p.run(ctx, req, nil)
}

// run drives the node walk. emit is nil for buffered execution.
func (p *Pipeline) run(ctx context.Context, req Request, emit provider.StreamFunc) (*State, error) {
	state := newState(req)

	node := NodeValidate
	for node != NodeEnd && node != NodeError400 {
		if err := ctx.Err(); err != nil {
			return state, fmt.Errorf("pipeline canceled at %s: %w", node, err)
		}
		state.Visited = append(state.Visited, node)

		next, err := p.step(ctx, state, node, emit)
		if err != nil {
			return state, err
		}
		node = next
	}
	state.Visited = append(state.Visited, node)

	if state.Final() == nil {
		return state, ErrNoFinalResponse
	}
	return state, nil
}

// step dispatches one node and returns the next.
func (p *Pipeline) step(ctx context.Context, s *State, node Node, emit provider.StreamFunc) (Node, error) {
	switch node {
	case NodeValidate:
		return p.stepValidate(s)
	case NodePrivacy:
		return p.stepPrivacy(s)
	case NodePII:
		return p.stepPII(s)
	case NodeClassify:
		return p.stepClassify(ctx, s)
	case NodeGoldenGate:
		return p.stepGoldenGate(ctx, s)
	case NodeGoldenLookup:
		return p.stepGoldenLookup(ctx, s, emit)
	case NodeRetrieve:
		return p.stepRetrieve(ctx, s)
	case NodeKBDelta:
		return p.stepKBDelta(s)
	case NodeSelectPrompt:
		return p.stepSelectPrompt(s)
	case NodeGenerate:
		return p.stepGenerateOrCache(ctx, s, emit)
	case NodeToolCheck:
		return p.stepToolCheck(s)
	case NodeToolExecute:
		return p.stepToolExecute(ctx, s)
	case NodeFinalize:
		return p.stepFinalize(ctx, s)
	default:
		return NodeEnd, fmt.Errorf("pipeline: unknown node %q", node)
	}
}
