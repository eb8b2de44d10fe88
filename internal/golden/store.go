package golden

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Metadata carries the epoch/version information of a golden answer, used by
// the knowledge freshness delta decision.
type Metadata struct {
	UpdatedAt time.Time `json:"updated_at"`
	Tags      []string  `json:"tags"`
	Category  string    `json:"category"`
}

// Answer is a previously authored, higher-trust answer for a recognized
// query pattern.
type Answer struct {
	Pattern    string   `json:"pattern"` // normalized query pattern
	Content    string   `json:"content"`
	Confidence float64  `json:"confidence"`
	Epoch      int64    `json:"epoch"`
	Meta       Metadata `json:"meta"`
}

// Store looks up golden answers by query text.
// Implementations must be safe for concurrent use.
type Store interface {
	Lookup(ctx context.Context, queryText string) (*Answer, bool)
}

var normalizePattern = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// Normalize reduces a query to its lookup pattern: lowercase, punctuation
// stripped, whitespace collapsed.
func Normalize(queryText string) string {
	s := strings.ToLower(queryText)
	s = normalizePattern.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// MemoryStore is an in-process golden answer store seeded at startup.
type MemoryStore struct {
	mu      sync.RWMutex
	answers map[string]*Answer
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{answers: make(map[string]*Answer)}
}

// Put registers an answer under its normalized pattern. Last write wins.
func (s *MemoryStore) Put(answer *Answer) {
	key := Normalize(answer.Pattern)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[key] = answer
}

// Lookup implements Store.
func (s *MemoryStore) Lookup(_ context.Context, queryText string) (*Answer, bool) {
	key := Normalize(queryText)
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.answers[key]
	return a, ok
}

// Len returns the number of stored answers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.answers)
}
