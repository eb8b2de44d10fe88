package router

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/provider"
)

func fastRetry() RetryConfig {
	return RetryConfig{InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func newTestRouter(t *testing.T, cfg Config) *Router {
	t.Helper()
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = fastRetry()
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r
}

func testRequest() provider.Request {
	return provider.Request{
		Messages:    []chat.Message{chat.User("Cos'è l'IVA?")},
		Temperature: 0.3,
		MaxTokens:   1024,
	}
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	openai := provider.NewMock(provider.KindOpenAI)
	reg := provider.NewRegistry(openai)
	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
	})

	res, err := r.Execute(context.Background(), nil, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Response == nil || res.Response.Content == "" {
		t.Fatal("Execute() returned empty response")
	}
	if len(res.Attempts) != 1 {
		t.Errorf("Attempts = %d, want 1", len(res.Attempts))
	}
	if res.Attempts[0].Provider != provider.KindOpenAI {
		t.Errorf("attempt provider = %q, want openai", res.Attempts[0].Provider)
	}
}

func TestExecuteRetriesTransientErrors(t *testing.T) {
	t.Parallel()

	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(errors.New("503 Service Unavailable"))
	reg := provider.NewRegistry(openai)
	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
	})

	res, err := r.Execute(context.Background(), nil, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(res.Attempts))
	}
	if res.Attempts[0].Error == "" {
		t.Error("first attempt should record the transient error")
	}
	if res.Attempts[1].Error != "" {
		t.Errorf("second attempt error = %q, want success", res.Attempts[1].Error)
	}
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	t.Parallel()

	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(errors.New("401 invalid API key"))
	reg := provider.NewRegistry(openai)
	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
	})

	_, err := r.Execute(context.Background(), nil, testRequest())
	if err == nil {
		t.Fatal("Execute() = nil error, want immediate failure")
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Errorf("error = %v, want plain provider error, not exhaustion", err)
	}
	if openai.Calls() != 1 {
		t.Errorf("provider calls = %d, want 1", openai.Calls())
	}
}

// With max_retries = N in a production-like environment, an all-failing
// request must reselect onto the failover backend exactly once, at attempt
// index N-2, and report exhaustion only after the Nth failed attempt.
func TestExecuteForcedFailoverPosition(t *testing.T) {
	t.Parallel()

	transient := errors.New("503 Service Unavailable")
	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(transient, transient, transient, transient)
	anthropic := provider.NewMock(provider.KindAnthropic)
	anthropic.QueueError(transient, transient)
	reg := provider.NewRegistry(openai, anthropic)

	const maxRetries = 4
	r := newTestRouter(t, Config{
		Registry:       reg,
		Selector:       NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries:     maxRetries,
		ProductionLike: true,
	})

	_, err := r.Execute(context.Background(), nil, testRequest())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Execute() error = %v, want ErrAttemptsExhausted", err)
	}

	if openai.Calls() != maxRetries-2 {
		t.Errorf("primary provider calls = %d, want %d", openai.Calls(), maxRetries-2)
	}
	if anthropic.Calls() != 2 {
		t.Errorf("failover provider calls = %d, want 2", anthropic.Calls())
	}
}

func TestExecuteFailoverAttemptsRecorded(t *testing.T) {
	t.Parallel()

	transient := errors.New("rate limit exceeded")
	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(transient, transient)
	anthropic := provider.NewMock(provider.KindAnthropic)
	reg := provider.NewRegistry(openai, anthropic)

	r := newTestRouter(t, Config{
		Registry:       reg,
		Selector:       NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries:     4,
		ProductionLike: true,
	})

	res, err := r.Execute(context.Background(), nil, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(res.Attempts) != 3 {
		t.Fatalf("Attempts = %d, want 3", len(res.Attempts))
	}
	for i, a := range res.Attempts[:2] {
		if a.Failover {
			t.Errorf("attempt %d marked failover before reselection point", i)
		}
		if a.Provider != provider.KindOpenAI {
			t.Errorf("attempt %d provider = %q, want openai", i, a.Provider)
		}
	}
	last := res.Attempts[2]
	if !last.Failover || last.Provider != provider.KindAnthropic {
		t.Errorf("reselected attempt = %+v, want failover on anthropic", last)
	}
	if res.Decision.Strategy != StrategyFailover {
		t.Errorf("final decision strategy = %q, want failover", res.Decision.Strategy)
	}
}

func TestExecuteNoFailoverOutsideProduction(t *testing.T) {
	t.Parallel()

	transient := errors.New("503 Service Unavailable")
	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(transient, transient, transient, transient)
	anthropic := provider.NewMock(provider.KindAnthropic)
	reg := provider.NewRegistry(openai, anthropic)

	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
	})

	_, err := r.Execute(context.Background(), nil, testRequest())
	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Fatalf("Execute() error = %v, want ErrAttemptsExhausted", err)
	}
	if openai.Calls() != 4 {
		t.Errorf("primary provider calls = %d, want all 4", openai.Calls())
	}
	if anthropic.Calls() != 0 {
		t.Errorf("failover provider calls = %d, want 0", anthropic.Calls())
	}
}

func TestExecuteKeepsDecisionWhenReselectionFails(t *testing.T) {
	t.Parallel()

	transient := errors.New("503 Service Unavailable")
	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(transient, transient)
	// No anthropic registered: failover reselection cannot succeed.
	reg := provider.NewRegistry(openai)

	r := newTestRouter(t, Config{
		Registry:       reg,
		Selector:       NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries:     4,
		ProductionLike: true,
	})

	res, err := r.Execute(context.Background(), nil, testRequest())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if res.Decision.Provider != provider.KindOpenAI {
		t.Errorf("decision provider = %q, want openai kept after failed reselection", res.Decision.Provider)
	}
	if openai.Calls() != 3 {
		t.Errorf("provider calls = %d, want 3", openai.Calls())
	}
}

func TestExecuteContextCancellationDuringBackoff(t *testing.T) {
	t.Parallel()

	openai := provider.NewMock(provider.KindOpenAI)
	openai.QueueError(errors.New("503 Service Unavailable"))
	reg := provider.NewRegistry(openai)

	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
		Retry:      RetryConfig{InitialInterval: time.Minute, MaxInterval: time.Minute},
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, err := r.Execute(ctx, nil, testRequest())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled during backoff", err)
	}
}

func TestExecuteStreamAccumulates(t *testing.T) {
	t.Parallel()

	openai := provider.NewMock(provider.KindOpenAI)
	openai.AddResponse("Cos'è l'IVA?", &provider.Response{
		Content: "L'IVA è l'imposta sul valore aggiunto, con aliquota ordinaria al 22%.",
	})
	reg := provider.NewRegistry(openai)

	r := newTestRouter(t, Config{
		Registry:   reg,
		Selector:   NewSelector(StrategyBalanced, 0.50, reg),
		MaxRetries: 4,
	})

	var deltas []string
	var done bool
	res, err := r.ExecuteStream(context.Background(), nil, testRequest(),
		func(_ context.Context, chunk provider.Chunk) error {
			if chunk.Done {
				done = true
				return nil
			}
			deltas = append(deltas, chunk.ContentDelta)
			return nil
		})
	if err != nil {
		t.Fatalf("ExecuteStream() error = %v", err)
	}
	if !done {
		t.Error("stream missing terminal Done chunk")
	}
	if joined := strings.Join(deltas, ""); joined != res.Response.Content {
		t.Errorf("accumulated deltas = %q, want %q", joined, res.Response.Content)
	}
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{}); err == nil {
		t.Error("New(zero config) = nil error, want validation failure")
	}
}
