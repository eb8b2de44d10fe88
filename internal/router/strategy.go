// Package router selects a language-model backend per request and owns the
// retry/failover loop around every outbound generation call. Selection is
// table-driven from the query classification; retries use exponential
// backoff with per-provider circuit breaking and a forced failover
// reselection near the end of the attempt budget.
package router

import (
	"github.com/fiscogo/fisco/internal/classify"
	"github.com/fiscogo/fisco/internal/provider"
)

// Strategy names a routing posture. It decides both which backend serves
// the request and how much it is allowed to cost.
type Strategy string

const (
	StrategyCostOptimized Strategy = "cost_optimized"
	StrategyQualityFirst  Strategy = "quality_first"
	StrategyBalanced      Strategy = "balanced"
	StrategyFailover      Strategy = "failover"
)

// Decision is the routing outcome for one attempt. It is recomputed per
// attempt and never persisted.
type Decision struct {
	Strategy   Strategy      `json:"strategy"`
	MaxCostEUR float64       `json:"max_cost_eur"`
	Provider   provider.Kind `json:"provider"`
	Model      string        `json:"model"`
}

type domainAction struct {
	domain classify.Domain
	action classify.Action
}

type tableEntry struct {
	strategy   Strategy
	ceilingEUR float64
}

// strategyTable maps (domain, action) pairs to a posture and per-class cost
// ceiling. Document generation and contract work go quality-first with tight
// ceilings; plain informational queries go cost-optimized with looser ones.
// Unmatched pairs fall through to balanced with a mid ceiling.
var strategyTable = map[domainAction]tableEntry{
	{classify.DomainTax, classify.ActionInformationRequest}: {StrategyCostOptimized, 0.20},
	{classify.DomainTax, classify.ActionCalculationRequest}: {StrategyBalanced, 0.10},
	{classify.DomainTax, classify.ActionComplianceCheck}:    {StrategyQualityFirst, 0.12},
	{classify.DomainTax, classify.ActionDocumentGeneration}: {StrategyQualityFirst, 0.06},

	{classify.DomainLegal, classify.ActionDocumentGeneration}: {StrategyQualityFirst, 0.05},
	{classify.DomainLegal, classify.ActionContractReview}:     {StrategyQualityFirst, 0.08},
	{classify.DomainLegal, classify.ActionDocumentAnalysis}:   {StrategyQualityFirst, 0.10},

	{classify.DomainLabor, classify.ActionInformationRequest}: {StrategyBalanced, 0.10},
	{classify.DomainLabor, classify.ActionContractReview}:     {StrategyQualityFirst, 0.08},

	{classify.DomainAccounting, classify.ActionCalculationRequest}: {StrategyCostOptimized, 0.15},
	{classify.DomainAccounting, classify.ActionDocumentAnalysis}:   {StrategyBalanced, 0.12},

	{classify.DomainGeneral, classify.ActionInformationRequest}: {StrategyCostOptimized, 0.20},
}

const defaultCeilingEUR = 0.10

type backend struct {
	provider provider.Kind
	model    string
}

// strategyBackends binds each posture to a concrete provider/model pair.
// Failover deliberately lands on a different vendor than the primary
// postures so a vendor-wide outage cannot consume the whole budget.
var strategyBackends = map[Strategy]backend{
	StrategyCostOptimized: {provider.KindOpenAI, "gpt-4o-mini"},
	StrategyBalanced:      {provider.KindOpenAI, "gpt-4o"},
	StrategyQualityFirst:  {provider.KindAnthropic, "claude-sonnet-4-20250514"},
	StrategyFailover:      {provider.KindAnthropic, "claude-3-5-haiku-20241022"},
}

// Confidence bands that adjust the table result.
const (
	lowConfidence  = 0.7
	highConfidence = 0.9

	lowConfidenceCeilingFactor  = 0.8
	highConfidenceCeilingFactor = 1.2
	failoverCeilingFactor       = 2.0
)

// Selector derives routing decisions from classifications. Immutable after
// construction, safe for concurrent use.
type Selector struct {
	defaultStrategy  Strategy
	globalCeilingEUR float64
	registry         *provider.Registry
}

// NewSelector builds a selector. The global ceiling is the hard upper bound
// on every decision's MaxCostEUR regardless of table values or confidence
// adjustments.
func NewSelector(defaultStrategy Strategy, globalCeilingEUR float64, registry *provider.Registry) *Selector {
	if _, ok := strategyBackends[defaultStrategy]; !ok {
		defaultStrategy = StrategyBalanced
	}
	return &Selector{
		defaultStrategy:  defaultStrategy,
		globalCeilingEUR: globalCeilingEUR,
		registry:         registry,
	}
}

// Select computes the routing decision for a classification. A nil
// classification uses the default strategy at the global ceiling.
func (s *Selector) Select(c *classify.Classification) Decision {
	if c == nil {
		return s.decisionFor(s.defaultStrategy, s.globalCeilingEUR)
	}

	entry, ok := strategyTable[domainAction{c.Domain, c.Action}]
	if !ok {
		entry = tableEntry{StrategyBalanced, defaultCeilingEUR}
	}

	strategy := entry.strategy
	ceiling := entry.ceilingEUR
	switch {
	case c.Confidence < lowConfidence:
		strategy = StrategyFailover
		ceiling *= lowConfidenceCeilingFactor
	case c.Confidence > highConfidence:
		ceiling *= highConfidenceCeilingFactor
	}

	return s.decisionFor(strategy, min(ceiling, s.globalCeilingEUR))
}

// Failover reselects the current decision onto the failover backend with a
// doubled ceiling, still clamped to the global maximum. It fails when the
// failover backend's provider was never registered; callers keep the prior
// decision in that case.
func (s *Selector) Failover(current Decision) (Decision, error) {
	next := s.decisionFor(StrategyFailover, min(current.MaxCostEUR*failoverCeilingFactor, s.globalCeilingEUR))
	if s.registry != nil {
		if _, err := s.registry.Get(next.Provider); err != nil {
			return Decision{}, err
		}
	}
	return next, nil
}

func (s *Selector) decisionFor(strategy Strategy, ceiling float64) Decision {
	b := strategyBackends[strategy]
	return Decision{
		Strategy:   strategy,
		MaxCostEUR: ceiling,
		Provider:   b.provider,
		Model:      b.model,
	}
}
