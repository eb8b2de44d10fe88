package pipeline

import (
	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/golden"
)

// StreamMode is how a response is produced in streaming mode. Selected
// exactly once per request, after the golden gate, and never re-evaluated
// mid-stream.
type StreamMode string

const (
	// ModeGoldenFastPath serves the stored golden answer, falling back to
	// direct streaming when no golden answer is actually available.
	ModeGoldenFastPath StreamMode = "golden_fast_path"
	// ModePipeline streams through the full graph with the tool set attached.
	ModePipeline StreamMode = "pipeline"
	// ModeDirect streams straight from the selected provider with no tools.
	ModeDirect StreamMode = "direct"
)

// requiresToolsActions is the fixed set of classified actions that need the
// tool-augmented workflow: contract and labor-agreement queries, document
// analysis, calculations, and compliance checks.
var requiresToolsActions = map[classify.Action]bool{
	classify.ActionContractReview:     true,
	classify.ActionDocumentAnalysis:   true,
	classify.ActionCalculationRequest: true,
	classify.ActionComplianceCheck:    true,
}

// selectStreamMode picks the streaming strategy. First match wins:
// golden fast path, then tool-requiring actions, then direct.
func (p *Pipeline) selectStreamMode(s *State) StreamMode {
	if s.Gate != nil && s.Gate.Decision == golden.Eligible && s.Gate.AllowsGoldenLookup {
		return ModeGoldenFastPath
	}
	if s.Classification != nil && requiresToolsActions[s.Classification.Action] {
		return ModePipeline
	}
	return ModeDirect
}

// requiresTools reports whether the tool set should be attached to
// generation requests for this classification.
func requiresTools(c *classify.Classification) bool {
	return c != nil && requiresToolsActions[c.Action]
}
