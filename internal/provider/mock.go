package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/fiscogo/fisco/internal/chat"
)

// Mock is a lightweight in-memory Provider useful for tests and key-less
// dev environments. Responses can be scripted per prompt, and errors can be
// queued to exercise retry/failover paths.
type Mock struct {
	mu        sync.Mutex
	kind      Kind
	responses map[string]*Response
	respQueue []*Response
	errQueue  []error
	calls     int
}

// NewMock constructs a mock provider reporting the given kind (defaults to
// KindMock when empty, but tests may impersonate real kinds to exercise
// routing).
func NewMock(kind Kind) *Mock {
	if kind == "" {
		kind = KindMock
	}
	return &Mock{
		kind:      kind,
		responses: make(map[string]*Response),
	}
}

// AddResponse registers a canned response for the latest-user-text prompt.
func (m *Mock) AddResponse(prompt string, resp *Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = resp
}

// QueueResponse scripts ordered responses consumed one per call, ahead of
// any per-prompt canned response. Useful for tool-call conversations where
// successive calls to the same prompt must differ.
func (m *Mock) QueueResponse(resps ...*Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respQueue = append(m.respQueue, resps...)
}

// QueueError makes the next call(s) fail in order before any canned
// response is served.
func (m *Mock) QueueError(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errQueue = append(m.errQueue, errs...)
}

// Calls reports how many completion attempts the mock has served.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Complete implements Provider.
func (m *Mock) Complete(ctx context.Context, model string, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	if len(m.errQueue) > 0 {
		err := m.errQueue[0]
		m.errQueue = m.errQueue[1:]
		m.mu.Unlock()
		return nil, err
	}

	prompt, _ := chat.LatestUserText(req.Messages)
	var (
		resp *Response
		ok   bool
	)
	if len(m.respQueue) > 0 {
		resp, ok = m.respQueue[0], true
		m.respQueue = m.respQueue[1:]
	} else {
		resp, ok = m.responses[prompt]
	}
	m.mu.Unlock()

	if !ok {
		resp = &Response{
			Content: fmt.Sprintf("mock response to: %s", prompt),
			Usage:   TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		}
	}

	out := *resp
	out.Model = model
	out.Provider = m.kind
	if out.CostEstimateEUR == 0 {
		out.CostEstimateEUR = EstimateCostEUR(model, out.Usage)
	}
	return &out, nil
}

// Stream implements Provider by chunking the canned response content.
func (m *Mock) Stream(ctx context.Context, model string, req Request, fn StreamFunc) (*Response, error) {
	resp, err := m.Complete(ctx, model, req)
	if err != nil {
		return nil, err
	}

	const chunkSize = 16
	content := resp.Content
	for i := 0; i < len(content); i += chunkSize {
		end := min(i+chunkSize, len(content))
		if err := fn(ctx, Chunk{ContentDelta: content[i:end]}); err != nil {
			return nil, fmt.Errorf("stream callback: %w", err)
		}
	}
	if err := fn(ctx, Chunk{Done: true}); err != nil {
		return nil, fmt.Errorf("stream callback: %w", err)
	}
	return resp, nil
}

// Kind implements Provider.
func (m *Mock) Kind() Kind { return m.kind }
