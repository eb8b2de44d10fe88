// Package golden implements the golden fast-path gate: a pure, sub-10ms
// heuristic that decides whether a query may skip retrieval and tool
// execution and attempt a pre-computed golden answer.
//
// The gate performs no I/O. Policy lives in an ordered rule table evaluated
// first-match-wins, followed by an unconditional safety pass that can only
// downgrade an eligible decision. Confidence floors are applied with ratchet
// semantics (max(current, floor)) and are never lowered once established.
package golden

import (
	"regexp"
	"strings"
	"time"
)

// Decision is the gate's eligibility verdict.
type Decision string

// Gate decisions.
const (
	Eligible    Decision = "ELIGIBLE"
	NotEligible Decision = "NOT_ELIGIBLE"
)

// Next-step hints attached to gate results.
const (
	NextGoldenLookup = "golden_lookup"
	NextIngestion    = "ingestion"
	NextFullPipeline = "full_pipeline"
)

// Reason tags accumulated by rule evaluation. The reasons list is an
// append-only audit trail: tags are added, never removed.
const (
	ReasonHasAttachments     = "has_attachments"
	ReasonDocumentDependent  = "document_dependent"
	ReasonComplexAnalysis    = "complex_analysis"
	ReasonQuickCheckSafe     = "quick_check_safe"
	ReasonSimpleFAQ          = "simple_faq"
	ReasonFactualKnowledge   = "factual_knowledge"
	ReasonDetailedProcessing = "requires_detailed_processing"
	ReasonSafetyCheckFailed  = "safety_check_failed"
)

// Result is the gate's output for one query.
type Result struct {
	Decision           Decision        `json:"decision"`
	Confidence         float64         `json:"confidence"`
	Reasons            []string        `json:"reasons"` // append-only, ordered
	NextStep           string          `json:"next_step"`
	AllowsGoldenLookup bool            `json:"allows_golden_lookup"`
	SafetyChecks       map[string]bool `json:"safety_checks,omitempty"`
	LatencyMS          float64         `json:"latency_ms,omitempty"`
}

// query is the normalized gate input.
type query struct {
	text           string
	lower          string
	hasAttachments bool
}

// rule is one entry of the eligibility policy table. Rules are evaluated in
// declaration order; the first matching rule decides. Eligible rules build
// confidence additively (attachment-free base + rule weight) and then ratchet
// to the rule floor; ineligible rules ratchet directly to the floor.
type rule struct {
	name        string
	matches     func(q query) bool
	decision    Decision
	weight      float64 // additive contribution for eligible rules
	floor       float64 // minimum confidence, applied via ratchet
	reasons     []string
	nextStep    string
	allowLookup bool
}

// noAttachmentsBase is the additive confidence contribution of the
// attachment-free precondition shared by both eligible rules.
const noAttachmentsBase = 0.3

// maxQueryLength is the safety-pass limit: longer queries are forced off the
// fast path regardless of rule outcome.
const maxQueryLength = 500

var (
	documentDependentTerms = []string{
		"analizza questo documento", "analyze this document",
		"questo file", "this file", "allegato", "attached",
		"leggi il documento", "read the document", "nel documento",
		"review this document", "esamina il documento",
	}

	complexAnalysisTerms = []string{
		"strategia", "strategy", "business plan", "analisi dettagliata",
		"detailed analysis", "pro e contro", "pros and cons",
		"confronta", "compare", "implicazioni", "implications",
		"scenari", "scenarios", "valutazione completa",
	}

	quickFactualTerms = []string{
		"cos'è", "cos'e", "cosa significa", "cosa vuol dire", "che cos",
		"what is", "what does", "come si", "quando scade", "quanto fa",
		"quanto costa", "qual è", "qual e", "which is", "how much",
	}

	// faqPattern matches domain-specific nouns that identify simple FAQ
	// queries even without an interrogative prefix.
	faqPattern = regexp.MustCompile(`(?i)\b(iva|irpef|ires|irap|f24|730|` +
		`partita iva|codice fiscale|fattura elettronica|regime forfettario|` +
		`detrazion\w*|aliquot\w*)\b`)

	// Sensitive-data shapes checked by the safety pass.
	fiscalCodePattern = regexp.MustCompile(`\b[A-Za-z]{6}\d{2}[A-Za-z]\d{2}[A-Za-z]\d{3}[A-Za-z]\b`)
	cardNumberPattern = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
	emailPattern      = regexp.MustCompile(`\b[\w.%+-]+@[\w.-]+\.[A-Za-z]{2,}\b`)
)

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(s, term) {
			return true
		}
	}
	return false
}

// rules is the gate policy, ordered first-applicable-with-override.
// This is intentionally a data table rather than branching code.
var rules = []rule{
	{
		name:     "has_attachments",
		matches:  func(q query) bool { return q.hasAttachments },
		decision: NotEligible,
		floor:    0.95,
		reasons:  []string{ReasonHasAttachments},
		nextStep: NextIngestion,
	},
	{
		name:     "document_dependent",
		matches:  func(q query) bool { return containsAny(q.lower, documentDependentTerms) },
		decision: NotEligible,
		floor:    0.85,
		reasons:  []string{ReasonDocumentDependent},
		nextStep: NextFullPipeline,
	},
	{
		name:     "complex_analysis",
		matches:  func(q query) bool { return containsAny(q.lower, complexAnalysisTerms) },
		decision: NotEligible,
		floor:    0.80,
		reasons:  []string{ReasonComplexAnalysis},
		nextStep: NextFullPipeline,
	},
	{
		name:        "quick_factual",
		matches:     func(q query) bool { return containsAny(q.lower, quickFactualTerms) },
		decision:    Eligible,
		weight:      0.4,
		floor:       0.71,
		reasons:     []string{ReasonQuickCheckSafe, ReasonFactualKnowledge},
		nextStep:    NextGoldenLookup,
		allowLookup: true,
	},
	{
		name:        "simple_faq",
		matches:     func(q query) bool { return faqPattern.MatchString(q.text) },
		decision:    Eligible,
		weight:      0.35,
		floor:       0.71,
		reasons:     []string{ReasonSimpleFAQ, ReasonFactualKnowledge},
		nextStep:    NextGoldenLookup,
		allowLookup: true,
	},
	{
		name:     "default",
		matches:  func(q query) bool { return true },
		decision: NotEligible,
		floor:    0.75,
		reasons:  []string{ReasonDetailedProcessing},
		nextStep: NextFullPipeline,
	},
}

// ratchet raises confidence to floor without ever lowering it.
func ratchet(current, floor float64) float64 {
	if floor > current {
		return floor
	}
	return current
}

// Evaluate runs the eligibility policy for one query.
// Deterministic for identical (text, hasAttachments) input.
func Evaluate(text string, hasAttachments bool) Result {
	start := time.Now()

	q := query{
		text:           text,
		lower:          strings.ToLower(text),
		hasAttachments: hasAttachments,
	}

	var res Result
	for _, r := range rules {
		if !r.matches(q) {
			continue
		}
		res = Result{
			Decision:           r.decision,
			NextStep:           r.nextStep,
			AllowsGoldenLookup: r.allowLookup,
		}
		res.Reasons = append(res.Reasons, r.reasons...)
		if r.decision == Eligible {
			res.Confidence = ratchet(noAttachmentsBase+r.weight, r.floor)
		} else {
			res.Confidence = ratchet(res.Confidence, r.floor)
		}
		break
	}

	res = safetyPass(q, res)
	res.LatencyMS = float64(time.Since(start).Microseconds()) / 1000.0
	return res
}

// safetyPass runs unconditionally after rule evaluation. It can only
// downgrade Eligible to NotEligible, never the reverse. Each triggered check
// ratchets confidence to its own higher floor and appends
// ReasonSafetyCheckFailed exactly once.
func safetyPass(q query, res Result) Result {
	checks := map[string]bool{
		"query_length":  len(q.text) > maxQueryLength,
		"fiscal_code":   fiscalCodePattern.MatchString(q.text),
		"card_number":   cardNumberPattern.MatchString(q.text),
		"email_address": emailPattern.MatchString(q.text),
	}
	res.SafetyChecks = checks

	triggered := false
	floor := 0.0
	if checks["query_length"] {
		triggered = true
		floor = ratchet(floor, 0.90)
	}
	if checks["fiscal_code"] || checks["card_number"] || checks["email_address"] {
		triggered = true
		floor = ratchet(floor, 0.95)
	}
	if !triggered {
		return res
	}

	if res.Decision == Eligible {
		res.Decision = NotEligible
		res.NextStep = NextFullPipeline
		res.AllowsGoldenLookup = false
	}
	res.Confidence = ratchet(res.Confidence, floor)
	res.Reasons = append(res.Reasons, ReasonSafetyCheckFailed)
	return res
}

// CanServeFromGolden implements the two-condition serve invariant: a golden
// answer is servable iff confidence meets the threshold AND the knowledge
// base epoch does not exceed the golden answer's epoch. Both conditions are
// necessary; neither alone is sufficient. Pure and stateless.
func CanServeFromGolden(confidence float64, kbEpoch, goldenEpoch int64, threshold float64) bool {
	return confidence >= threshold && kbEpoch <= goldenEpoch
}
