package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

// ErrAttemptsExhausted is returned after every attempt in the budget failed.
// It terminates the request; callers must not absorb it.
var ErrAttemptsExhausted = errors.New("all provider attempts exhausted")

// forcedFailoverOffset positions the forced failover reselection at the
// second-to-last attempt of the budget.
const forcedFailoverOffset = 2

// Attempt records one generation attempt for usage accounting and
// debugging. Observational only: decision logic never reads it back.
type Attempt struct {
	Index     int           `json:"index"`
	Provider  provider.Kind `json:"provider"`
	Model     string        `json:"model"`
	Strategy  Strategy      `json:"strategy"`
	Failover  bool          `json:"failover,omitempty"`
	Error     string        `json:"error,omitempty"`
	LatencyMS float64       `json:"latency_ms"`
}

// Result is the outcome of a successful attempt loop.
type Result struct {
	Response  *provider.Response
	Decision  Decision
	Attempts  []Attempt
	LatencyMS float64
}

// Config configures the Router.
type Config struct {
	Registry       *provider.Registry
	Selector       *Selector
	MaxRetries     int
	ProductionLike bool
	Retry          RetryConfig
	Breaker        CircuitBreakerConfig
	RateLimitRPS   float64
	RateLimitBurst int
	Logger         log.Logger
}

func (c *Config) validate() error {
	if c.Registry == nil {
		return errors.New("router: registry is required")
	}
	if c.Selector == nil {
		return errors.New("router: selector is required")
	}
	return nil
}

// Router drives the per-request attempt loop: SELECT, ATTEMPT, then RETRY
// or FAILOVER until success or exhaustion. Safe for concurrent use; all
// per-request state lives on the stack.
type Router struct {
	registry   *provider.Registry
	selector   *Selector
	maxRetries int
	production bool
	retry      RetryConfig
	limiter    *rate.Limiter
	logger     log.Logger

	mu       sync.Mutex
	breakers map[provider.Kind]*CircuitBreaker
	breaker  CircuitBreakerConfig
}

// New constructs a Router. Zero retry/breaker configs get defaults; a zero
// MaxRetries defaults to 4.
func New(cfg Config) (*Router, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Router{
		registry:   cfg.Registry,
		selector:   cfg.Selector,
		maxRetries: cfg.MaxRetries,
		production: cfg.ProductionLike,
		retry:      cfg.Retry,
		limiter:    limiter,
		logger:     cfg.Logger,
		breakers:   make(map[provider.Kind]*CircuitBreaker),
		breaker:    cfg.Breaker,
	}, nil
}

// Select exposes the selector for callers that need the decision without
// running an attempt (streaming mode decides the tool list up front).
func (r *Router) Select(c *classify.Classification) Decision {
	return r.selector.Select(c)
}

// Execute runs the buffered attempt loop for one request.
func (r *Router) Execute(ctx context.Context, c *classify.Classification, req provider.Request) (*Result, error) {
	return r.run(ctx, c, req, nil)
}

// ExecuteStream runs the streaming attempt loop. Retrying is only possible
// while nothing has been emitted yet; once the consumer has seen a delta, a
// mid-stream failure is terminal because replaying would duplicate output.
func (r *Router) ExecuteStream(ctx context.Context, c *classify.Classification, req provider.Request, fn provider.StreamFunc) (*Result, error) {
	return r.run(ctx, c, req, fn)
}

func (r *Router) run(ctx context.Context, c *classify.Classification, req provider.Request, fn provider.StreamFunc) (*Result, error) {
	decision := r.selector.Select(c)
	attempts := make([]Attempt, 0, r.maxRetries)
	delay := r.retry.InitialInterval
	start := time.Now()

	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if r.production && r.maxRetries >= forcedFailoverOffset && attempt == r.maxRetries-forcedFailoverOffset {
			next, err := r.selector.Failover(decision)
			if err != nil {
				// Keep the previously selected provider.
				r.logger.Warn("failover reselection failed",
					"attempt", attempt,
					"provider", decision.Provider,
					"error", err,
				)
			} else {
				r.logger.Info("forced failover reselection",
					"attempt", attempt,
					"from", decision.Provider,
					"to", next.Provider,
					"max_cost_eur", next.MaxCostEUR,
				)
				decision = next
			}
		}

		record := Attempt{
			Index:    attempt,
			Provider: decision.Provider,
			Model:    decision.Model,
			Strategy: decision.Strategy,
			Failover: decision.Strategy == StrategyFailover,
		}

		resp, emitted, err := r.attempt(ctx, decision, req, fn, &record)
		attempts = append(attempts, record)

		if err == nil {
			elapsed := time.Since(start)
			r.logger.Debug("generation succeeded",
				"attempts", attempt+1,
				"provider", decision.Provider,
				"model", decision.Model,
				"elapsed", elapsed,
			)
			return &Result{
				Response:  resp,
				Decision:  decision,
				Attempts:  attempts,
				LatencyMS: float64(elapsed) / float64(time.Millisecond),
			}, nil
		}
		lastErr = err

		if emitted {
			return nil, fmt.Errorf("stream failed after partial output: %w", err)
		}
		if !retryableError(err) {
			return nil, fmt.Errorf("provider call: %w", err)
		}

		// Last attempt - don't sleep
		if attempt == r.maxRetries-1 {
			break
		}

		r.logger.Debug("retrying after error",
			"attempt", attempt+1,
			"delay", delay,
			"elapsed", time.Since(start),
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context canceled during retry: %w", ctx.Err())
		case <-time.After(delay):
			delay = min(delay*2, r.retry.MaxInterval)
		}
	}

	return nil, fmt.Errorf("%w: %d attempts (elapsed: %v): %w",
		ErrAttemptsExhausted, r.maxRetries, time.Since(start), lastErr)
}

// attempt runs a single rate-limited, breaker-guarded provider call and
// fills the attempt record. emitted reports whether any stream delta reached
// the consumer before the error.
func (r *Router) attempt(ctx context.Context, decision Decision, req provider.Request, fn provider.StreamFunc, record *Attempt) (resp *provider.Response, emitted bool, err error) {
	attemptStart := time.Now()
	defer func() {
		record.LatencyMS = float64(time.Since(attemptStart)) / float64(time.Millisecond)
		if err != nil {
			record.Error = err.Error()
		}
	}()

	// Rate limit EACH attempt, failed ones included.
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, false, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	p, err := r.registry.Get(decision.Provider)
	if err != nil {
		return nil, false, err
	}

	breaker := r.breakerFor(decision.Provider)
	if err := breaker.Allow(); err != nil {
		return nil, false, fmt.Errorf("%s: %w", decision.Provider, err)
	}

	if fn == nil {
		resp, err = p.Complete(ctx, decision.Model, req)
	} else {
		wrapped := func(ctx context.Context, chunk provider.Chunk) error {
			emitted = true
			return fn(ctx, chunk)
		}
		resp, err = p.Stream(ctx, decision.Model, req, wrapped)
	}

	if err != nil {
		breaker.Failure()
		return nil, emitted, err
	}
	breaker.Success()
	return resp, emitted, nil
}

func (r *Router) breakerFor(kind provider.Kind) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	cb, ok := r.breakers[kind]
	if !ok {
		cb = NewCircuitBreaker(r.breaker)
		r.breakers[kind] = cb
	}
	return cb
}
