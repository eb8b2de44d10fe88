// Package knowledge defines the hybrid-search boundary and the knowledge
// freshness delta decision: given freshly retrieved hits and a golden
// answer's metadata, decide whether the golden answer is stale or
// contradicted.
package knowledge

import (
	"context"
	"time"
)

// Hit is one ranked result returned by the hybrid search service.
// ConflictDetected and ConflictReasons are computed upstream by the search
// engine's conflict detector.
type Hit struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	Category         string    `json:"category"`
	Source           string    `json:"source"`
	Score            float64   `json:"score"`
	UpdatedAt        time.Time `json:"updated_at"`
	Tags             []string  `json:"tags"`
	ConflictDetected bool      `json:"conflict_detected"`
	ConflictReasons  []string  `json:"conflict_reasons,omitempty"`
}

// Searcher is the hybrid search service boundary (vector+keyword+recency
// ranking happens behind it). Implemented elsewhere; the pipeline only
// consumes the ranked list.
type Searcher interface {
	RetrieveTopK(ctx context.Context, queryText string, k int) ([]Hit, error)
}

// EpochSource reports the current knowledge base epoch, a monotonically
// increasing version marker used by the golden-answer serve invariant.
type EpochSource interface {
	KBEpoch(ctx context.Context) int64
}

// StaticEpoch is an EpochSource pinned to a fixed value, used in tests and
// in deployments where the epoch is pushed through configuration.
type StaticEpoch int64

// KBEpoch implements EpochSource.
func (s StaticEpoch) KBEpoch(context.Context) int64 { return int64(s) }

// NopSearcher is a Searcher with no knowledge base behind it. Deployments
// without a search backend run with it; the pipeline treats an empty hit
// list as "no fresh context".
type NopSearcher struct{}

// RetrieveTopK implements Searcher.
func (NopSearcher) RetrieveTopK(context.Context, string, int) ([]Hit, error) {
	return nil, nil
}
