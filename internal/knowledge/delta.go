package knowledge

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/log"
)

// DeltaDecision says whether fresh retrieval invalidates the golden answer.
type DeltaDecision string

// Delta decisions.
const (
	NewerKB   DeltaDecision = "newer_kb"
	NoNewerKB DeltaDecision = "no_newer_kb"
)

// DeltaResult is the freshness comparison outcome.
type DeltaResult struct {
	Decision           DeltaDecision `json:"decision"`
	ShouldMergeContext bool          `json:"should_merge_context"`
	NewerCount         int           `json:"newer_count"`
	ConflictCount      int           `json:"conflict_count"`
	ConflictTypes      []string      `json:"conflict_types,omitempty"` // distinct, sorted
	Reason             string        `json:"reason"`
}

// Markers that make a tag-or-category-sharing hit count as conflicting.
var (
	contradictionMarkers = []string{"supersedes", "replaces", "overrides"}
	changeMarkers        = []string{"rate_change", "law_change"}
)

// DeltaDecider compares fresh knowledge hits against golden metadata.
type DeltaDecider struct {
	logger log.Logger
}

// NewDeltaDecider creates a decider. Logger must not be nil.
func NewDeltaDecider(logger log.Logger) *DeltaDecider {
	return &DeltaDecider{logger: logger}
}

// Evaluate decides whether the retrieved hits invalidate the golden answer.
//
// Failure semantics: comparison errors never propagate. Any internal panic
// is recovered and converted to a no_newer_kb result (fail closed toward
// trusting the golden answer) with the error logged. This is a deliberate
// safe-default choice.
func (d *DeltaDecider) Evaluate(hits []Hit, meta *golden.Metadata) (result DeltaResult) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("knowledge delta comparison failed, trusting golden answer",
				"panic", r)
			result = DeltaResult{
				Decision:           NoNewerKB,
				ShouldMergeContext: false,
				Reason:             "comparison failed, defaulting to golden answer",
			}
		}
	}()

	if len(hits) == 0 {
		return DeltaResult{
			Decision:           NoNewerKB,
			ShouldMergeContext: false,
			Reason:             "no knowledge hits retrieved",
		}
	}

	if meta == nil {
		// Cannot compare: default to trusting fresh retrieval.
		return DeltaResult{
			Decision:           NewerKB,
			ShouldMergeContext: true,
			NewerCount:         len(hits),
			Reason:             fmt.Sprintf("no golden metadata, trusting %d fresh hits", len(hits)),
		}
	}

	goldenAt := meta.UpdatedAt.UTC()

	var newerCount, conflictCount int
	conflictTypes := make(map[string]struct{})

	for _, hit := range hits {
		if isNewer(hit, goldenAt) {
			newerCount++
		}
		if types := conflictTypesFor(hit, meta); len(types) > 0 {
			conflictCount++
			for _, t := range types {
				conflictTypes[t] = struct{}{}
			}
		}
	}

	decision := NoNewerKB
	if newerCount > 0 || conflictCount > 0 {
		decision = NewerKB
	}

	res := DeltaResult{
		Decision:           decision,
		ShouldMergeContext: decision == NewerKB,
		NewerCount:         newerCount,
		ConflictCount:      conflictCount,
		ConflictTypes:      sortedKeys(conflictTypes),
	}
	res.Reason = buildReason(res)
	return res
}

// isNewer reports whether a hit strictly postdates the golden timestamp.
// A zero golden timestamp makes every hit unconditionally newer. Both sides
// are normalized to UTC before comparison.
func isNewer(hit Hit, goldenAt time.Time) bool {
	if goldenAt.IsZero() {
		return true
	}
	return hit.UpdatedAt.UTC().After(goldenAt)
}

// conflictTypesFor returns the conflict-type tags a hit contributes, empty
// when the hit does not conflict. A hit conflicts when its upstream conflict
// flag is set, or when it shares the golden answer's tags or category and
// also carries an explicit contradiction or change marker.
func conflictTypesFor(hit Hit, meta *golden.Metadata) []string {
	var types []string

	if hit.ConflictDetected {
		if len(hit.ConflictReasons) > 0 {
			types = append(types, hit.ConflictReasons...)
		} else {
			types = append(types, "upstream_conflict")
		}
		return types
	}

	if !sharesScope(hit, meta) {
		return nil
	}

	for _, tag := range hit.Tags {
		lower := strings.ToLower(tag)
		for _, m := range contradictionMarkers {
			if lower == m {
				types = append(types, m)
			}
		}
		for _, m := range changeMarkers {
			if lower == m {
				types = append(types, m)
			}
		}
	}
	return types
}

// sharesScope reports whether the hit covers the same subject as the golden
// answer: same category, or at least one shared tag.
func sharesScope(hit Hit, meta *golden.Metadata) bool {
	if hit.Category != "" && strings.EqualFold(hit.Category, meta.Category) {
		return true
	}
	goldenTags := make(map[string]struct{}, len(meta.Tags))
	for _, t := range meta.Tags {
		goldenTags[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range hit.Tags {
		if _, ok := goldenTags[strings.ToLower(t)]; ok {
			return true
		}
	}
	return false
}

// buildReason renders the human-readable decision summary. It enumerates
// counts and, when present, the distinct conflict-type tags.
func buildReason(res DeltaResult) string {
	if res.Decision == NoNewerKB {
		return fmt.Sprintf("%d newer hits, %d conflicts: golden answer stands",
			res.NewerCount, res.ConflictCount)
	}
	if len(res.ConflictTypes) > 0 {
		return fmt.Sprintf("%d newer hits, %d conflicts (types: %s)",
			res.NewerCount, res.ConflictCount, strings.Join(res.ConflictTypes, ", "))
	}
	return fmt.Sprintf("%d newer hits, %d conflicts", res.NewerCount, res.ConflictCount)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
