package pipeline

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fiscogo/fisco/internal/cache"
	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/knowledge"
	"github.com/fiscogo/fisco/internal/provider"
	"github.com/fiscogo/fisco/internal/router"
)

// Error classifications carried on terminal responses. Stable identifiers;
// raw internal error text never reaches the caller.
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeProvider   = "provider_unavailable"
	ErrorTypeInternal   = "internal_error"
)

// ErrFinalAlreadySet reports a state-machine invariant violation: the
// terminal response may be set exactly once per request.
var ErrFinalAlreadySet = errors.New("pipeline: final response already set")

// ErrNoFinalResponse reports the complementary violation: the graph reached
// End without a terminal response.
var ErrNoFinalResponse = errors.New("pipeline: reached end without final response")

// Attachment describes a file attached to the request. Any attachment makes
// the request ineligible for the golden fast path.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// Request is one inbound conversational query.
type Request struct {
	SessionID   uuid.UUID
	UserID      string
	Messages    []chat.Message
	Attachments []Attachment
}

// Response is the exit contract: exactly one terminal response per request,
// carrying either content or a stable error classification.
type Response struct {
	Content    string `json:"content,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`
	StatusCode int    `json:"status_code"`
}

// State is the per-request pipeline state. One State per execution context;
// never shared across requests, so no locking.
type State struct {
	Request Request

	// Messages is the working conversation: redacted input, the selected
	// system prompt, generated assistant turns, and tool results.
	Messages []chat.Message

	PIIFlags       []string
	Classification *classify.Classification
	Gate           *golden.Result
	Golden         *golden.Answer
	Hits           []knowledge.Hit
	Delta          *knowledge.DeltaResult
	Mode           StreamMode

	// Generation bookkeeping, observational only.
	Decision       router.Decision
	LastResponse   *provider.Response
	CacheHit       bool
	CostEUR        float64
	LatencyMS      float64
	ToolIterations int

	// Visited records the node walk for observability.
	Visited []Node

	finalResponse *Response
}

func newState(req Request) *State {
	return &State{
		Request:  req,
		Messages: chat.Clone(req.Messages),
	}
}

// setFinal installs the terminal response. Calling it twice violates the
// state-machine invariant.
func (s *State) setFinal(resp Response) error {
	if s.finalResponse != nil {
		return ErrFinalAlreadySet
	}
	s.finalResponse = &resp
	return nil
}

// Final returns the terminal response, or nil before the graph completes.
func (s *State) Final() *Response {
	return s.finalResponse
}

// cachedEntry converts the last response into a cache entry.
func (s *State) cachedEntry() *cache.Entry {
	return &cache.Entry{Response: *s.LastResponse, CreatedAt: time.Now().UTC()}
}
