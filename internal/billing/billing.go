// Package billing receives fire-and-forget usage events from the pipeline.
// Recording failures must never affect the response returned to the caller,
// so the recorder drops events rather than block.
package billing

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

// Event is one usage record. CacheHit events carry the synthetic latency,
// not a measured one.
type Event struct {
	UserID    string        `json:"user_id"`
	SessionID uuid.UUID     `json:"session_id"`
	Provider  provider.Kind `json:"provider"`
	Model     string        `json:"model"`
	CostEUR   float64       `json:"cost_eur"`
	LatencyMS float64       `json:"latency_ms"`
	CacheHit  bool          `json:"cache_hit"`
	PIIFlags  []string      `json:"pii_flags,omitempty"`
	At        time.Time     `json:"at"`
}

// Recorder accepts usage events. Record must not block and must not fail
// the calling request.
type Recorder interface {
	Record(event Event)
}

// NopRecorder discards all events.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(Event) {}

// LogRecorder writes events to the structured log from a background
// goroutine. The channel is bounded; when full, events are dropped and
// counted rather than blocking the request path.
type LogRecorder struct {
	events chan Event
	logger log.Logger

	mu      sync.Mutex
	closed  bool
	dropped int64

	done chan struct{}
}

// NewLogRecorder starts the recorder goroutine. bufferSize <= 0 gets a
// default of 256.
func NewLogRecorder(logger log.Logger, bufferSize int) *LogRecorder {
	if logger == nil {
		logger = log.NewNop()
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	r := &LogRecorder{
		events: make(chan Event, bufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *LogRecorder) run() {
	defer close(r.done)
	for event := range r.events {
		r.logger.Info("usage",
			"user_id", event.UserID,
			"session_id", event.SessionID,
			"provider", event.Provider,
			"model", event.Model,
			"cost_eur", event.CostEUR,
			"latency_ms", event.LatencyMS,
			"cache_hit", event.CacheHit,
			"pii_flags", event.PIIFlags,
			"at", event.At,
		)
	}
}

// Record implements Recorder. Events arriving after Close, or while the
// buffer is full, are dropped.
func (r *LogRecorder) Record(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.dropped++
		return
	}
	select {
	case r.events <- event:
	default:
		r.dropped++
	}
}

// Close drains buffered events and stops the recorder. Safe to call once.
func (r *LogRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	dropped := r.dropped
	r.mu.Unlock()

	close(r.events)
	<-r.done

	if dropped > 0 {
		r.logger.Warn("usage events dropped", "count", dropped)
	}
}

// Dropped reports how many events were discarded due to backpressure.
func (r *LogRecorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
