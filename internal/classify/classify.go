// Package classify maps the latest user utterance to a domain/action pair
// that drives the golden gate, the freshness delta decision, the provider
// router's cost table, and the streaming strategy selector.
//
// Classification failure is non-fatal by contract: callers must treat an
// error as "no classification" and continue with default behavior.
package classify

import (
	"context"
	"strings"

	"github.com/fiscogo/fisco/internal/chat"
)

// Domain is the subject area of a query.
type Domain string

// Domains recognized by the decision pipeline.
const (
	DomainTax        Domain = "tax"
	DomainLegal      Domain = "legal"
	DomainLabor      Domain = "labor"
	DomainAccounting Domain = "accounting"
	DomainGeneral    Domain = "general"
)

// Action is the kind of work a query asks for.
type Action string

// Actions recognized by the decision pipeline.
const (
	ActionInformationRequest Action = "information_request"
	ActionDocumentGeneration Action = "document_generation"
	ActionDocumentAnalysis   Action = "document_analysis"
	ActionCalculationRequest Action = "calculation_request"
	ActionComplianceCheck    Action = "compliance_check"
	ActionContractReview     Action = "contract_review"
)

// Classification is the immutable result of classifying one request.
// Produced once per request and consumed by four downstream components;
// never mutated after creation.
type Classification struct {
	Domain       Domain  `json:"domain"`
	Action       Action  `json:"action"`
	Confidence   float64 `json:"confidence"` // 0..1
	SubDomain    string  `json:"sub_domain,omitempty"`
	DocumentType string  `json:"document_type,omitempty"`
	FallbackUsed bool    `json:"fallback_used"`
}

// Classifier produces a Classification from an ordered conversation.
// Implementations return (nil, nil) when the conversation contains no user
// message.
type Classifier interface {
	Classify(ctx context.Context, msgs []chat.Message) (*Classification, error)
}

// lexiconRule maps keyword evidence to a (domain, action) pair.
// Rules are evaluated in order; the first rule whose keywords match wins.
type lexiconRule struct {
	domain     Domain
	action     Action
	subDomain  string
	confidence float64
	keywords   []string
}

// Rules are ordered from most to least specific: action-bearing phrases
// before bare domain nouns.
var lexiconRules = []lexiconRule{
	{
		domain: DomainLegal, action: ActionContractReview, subDomain: "contracts",
		confidence: 0.85,
		keywords:   []string{"contratto", "contract", "clausola", "clause", "ccnl"},
	},
	{
		domain: DomainLegal, action: ActionDocumentGeneration, subDomain: "drafting",
		confidence: 0.82,
		keywords:   []string{"redigi", "draft", "prepara una lettera", "scrivi un documento"},
	},
	{
		domain: DomainTax, action: ActionCalculationRequest, subDomain: "vat",
		confidence: 0.84,
		keywords:   []string{"calcola", "calculate", "quanto pago", "how much tax", "aliquota su"},
	},
	{
		domain: DomainTax, action: ActionComplianceCheck, subDomain: "filings",
		confidence: 0.80,
		keywords:   []string{"scadenza", "deadline", "adempiment", "compliance", "obblig"},
	},
	{
		domain: DomainLabor, action: ActionInformationRequest, subDomain: "employment",
		confidence: 0.78,
		keywords:   []string{"dipendente", "employee", "licenziamento", "assunzione", "busta paga", "payroll"},
	},
	{
		domain: DomainAccounting, action: ActionInformationRequest, subDomain: "bookkeeping",
		confidence: 0.76,
		keywords:   []string{"fattura", "invoice", "bilancio", "partita doppia", "registrazione contabile"},
	},
	{
		domain: DomainTax, action: ActionInformationRequest, subDomain: "general",
		confidence: 0.75,
		keywords:   []string{"iva", "vat", "irpef", "ires", "imposta", "tassa", "tax", "detrazione", "deduzione"},
	},
}

// Lexicon is a deterministic keyword classifier used as the default and as
// the degradation path when an upstream model classifier is unavailable.
type Lexicon struct{}

// NewLexicon creates the lexicon classifier.
func NewLexicon() *Lexicon {
	return &Lexicon{}
}

// Classify implements Classifier. Returns (nil, nil) when no user message
// exists. Never returns a non-nil error; the signature matches the boundary
// contract so callers treat all classifiers uniformly.
func (l *Lexicon) Classify(_ context.Context, msgs []chat.Message) (*Classification, error) {
	text, ok := chat.LatestUserText(msgs)
	if !ok {
		return nil, nil
	}

	lower := strings.ToLower(text)
	for _, rule := range lexiconRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return &Classification{
					Domain:     rule.domain,
					Action:     rule.action,
					SubDomain:  rule.subDomain,
					Confidence: rule.confidence,
				}, nil
			}
		}
	}

	// No lexicon evidence: generic fallback with low confidence.
	return &Classification{
		Domain:       DomainGeneral,
		Action:       ActionInformationRequest,
		Confidence:   0.5,
		FallbackUsed: true,
	}, nil
}
