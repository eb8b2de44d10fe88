package knowledge

import (
	"strings"
	"testing"
	"time"

	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/log"
)

var goldenAt = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func goldenMeta() *golden.Metadata {
	return &golden.Metadata{
		UpdatedAt: goldenAt,
		Tags:      []string{"iva", "aliquote"},
		Category:  "tax",
	}
}

func TestEvaluateEmptyHits(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	got := d.Evaluate(nil, goldenMeta())

	if got.Decision != NoNewerKB {
		t.Errorf("Decision = %q, want %q", got.Decision, NoNewerKB)
	}
	if got.ShouldMergeContext {
		t.Error("ShouldMergeContext should be false with no hits")
	}
}

func TestEvaluateMissingGoldenMetadata(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	hits := []Hit{{ID: "kb-1", UpdatedAt: goldenAt.Add(-time.Hour)}}

	got := d.Evaluate(hits, nil)

	if got.Decision != NewerKB {
		t.Errorf("Decision = %q, want %q (no metadata means trust fresh retrieval)",
			got.Decision, NewerKB)
	}
	if !got.ShouldMergeContext {
		t.Error("ShouldMergeContext should mirror the newer_kb decision")
	}
}

func TestEvaluateNewerHit(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	hits := []Hit{{
		ID:        "kb-1",
		Category:  "tax",
		UpdatedAt: goldenAt.Add(24 * time.Hour),
	}}

	got := d.Evaluate(hits, goldenMeta())

	if got.Decision != NewerKB {
		t.Errorf("Decision = %q, want %q", got.Decision, NewerKB)
	}
	if got.NewerCount != 1 {
		t.Errorf("NewerCount = %d, want 1", got.NewerCount)
	}
	if got.ConflictCount != 0 {
		t.Errorf("ConflictCount = %d, want 0", got.ConflictCount)
	}
}

func TestEvaluateOlderHitsNoConflict(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	hits := []Hit{
		{ID: "kb-1", Category: "tax", UpdatedAt: goldenAt.Add(-time.Hour)},
		{ID: "kb-2", Category: "tax", UpdatedAt: goldenAt}, // equal is not strictly newer
	}

	got := d.Evaluate(hits, goldenMeta())

	if got.Decision != NoNewerKB {
		t.Errorf("Decision = %q, want %q", got.Decision, NoNewerKB)
	}
	if got.ShouldMergeContext {
		t.Error("ShouldMergeContext should be false for no_newer_kb")
	}
}

func TestEvaluateTimezoneNormalization(t *testing.T) {
	t.Parallel()

	rome := time.FixedZone("Europe/Rome", 2*60*60)
	d := NewDeltaDecider(log.NewNop())

	// Same instant as goldenAt, expressed in another zone: not strictly newer.
	hits := []Hit{{ID: "kb-1", Category: "other", UpdatedAt: goldenAt.In(rome)}}
	got := d.Evaluate(hits, goldenMeta())
	if got.NewerCount != 0 {
		t.Errorf("NewerCount = %d, want 0 for equal instants across zones", got.NewerCount)
	}
}

func TestEvaluateUpstreamConflictFlag(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	hits := []Hit{{
		ID:               "kb-1",
		Category:         "other",
		UpdatedAt:        goldenAt.Add(-time.Hour),
		ConflictDetected: true,
		ConflictReasons:  []string{"rate_change"},
	}}

	got := d.Evaluate(hits, goldenMeta())

	if got.Decision != NewerKB {
		t.Errorf("Decision = %q, want %q (conflict alone forces newer_kb)", got.Decision, NewerKB)
	}
	if got.ConflictCount != 1 {
		t.Errorf("ConflictCount = %d, want 1", got.ConflictCount)
	}
	if len(got.ConflictTypes) != 1 || got.ConflictTypes[0] != "rate_change" {
		t.Errorf("ConflictTypes = %v, want [rate_change]", got.ConflictTypes)
	}
	if !strings.Contains(got.Reason, "rate_change") {
		t.Errorf("Reason = %q, must enumerate conflict types", got.Reason)
	}
}

func TestEvaluateMarkerConflictRequiresSharedScope(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())

	// Marker present but neither tags nor category overlap: no conflict.
	unrelated := []Hit{{
		ID:        "kb-1",
		Category:  "labor",
		Tags:      []string{"supersedes", "employment"},
		UpdatedAt: goldenAt.Add(-time.Hour),
	}}
	got := d.Evaluate(unrelated, goldenMeta())
	if got.ConflictCount != 0 {
		t.Errorf("ConflictCount = %d, want 0 for unrelated scope", got.ConflictCount)
	}

	// Same category plus contradiction marker: conflict.
	related := []Hit{{
		ID:        "kb-2",
		Category:  "tax",
		Tags:      []string{"supersedes"},
		UpdatedAt: goldenAt.Add(-time.Hour),
	}}
	got = d.Evaluate(related, goldenMeta())
	if got.ConflictCount != 1 {
		t.Errorf("ConflictCount = %d, want 1 for shared category with marker", got.ConflictCount)
	}
	if got.Decision != NewerKB {
		t.Errorf("Decision = %q, want %q", got.Decision, NewerKB)
	}
}

func TestEvaluateDistinctConflictTypesSorted(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	hits := []Hit{
		{ID: "a", Category: "tax", Tags: []string{"rate_change"}, UpdatedAt: goldenAt.Add(-time.Hour)},
		{ID: "b", Category: "tax", Tags: []string{"law_change", "rate_change"}, UpdatedAt: goldenAt.Add(-time.Hour)},
	}

	got := d.Evaluate(hits, goldenMeta())

	want := []string{"law_change", "rate_change"}
	if len(got.ConflictTypes) != len(want) {
		t.Fatalf("ConflictTypes = %v, want %v", got.ConflictTypes, want)
	}
	for i, w := range want {
		if got.ConflictTypes[i] != w {
			t.Errorf("ConflictTypes[%d] = %q, want %q", i, got.ConflictTypes[i], w)
		}
	}
}

func TestEvaluateZeroGoldenTimestamp(t *testing.T) {
	t.Parallel()

	d := NewDeltaDecider(log.NewNop())
	meta := &golden.Metadata{Category: "tax"} // zero UpdatedAt

	hits := []Hit{{ID: "kb-1", UpdatedAt: goldenAt.Add(-100 * time.Hour)}}
	got := d.Evaluate(hits, meta)

	if got.NewerCount != 1 {
		t.Errorf("NewerCount = %d, want 1 (missing golden timestamp makes hits unconditionally newer)",
			got.NewerCount)
	}
}

func TestStaticEpoch(t *testing.T) {
	t.Parallel()

	var src EpochSource = StaticEpoch(42)
	if got := src.KBEpoch(t.Context()); got != 42 {
		t.Errorf("KBEpoch() = %d, want 42", got)
	}
}
