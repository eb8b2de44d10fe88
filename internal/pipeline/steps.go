package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fiscogo/fisco/internal/billing"
	"github.com/fiscogo/fisco/internal/cache"
	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/checkpoint"
	"github.com/fiscogo/fisco/internal/golden"
	"github.com/fiscogo/fisco/internal/provider"
	"github.com/fiscogo/fisco/internal/router"
)

const basePrompt = `Sei un assistente fiscale e legale per professionisti italiani.
Rispondi in modo accurato e conciso su IVA, IRPEF, adempimenti, contratti e
contabilità. Quando non sei certo di una scadenza o di un'aliquota, dillo
esplicitamente. Non inventare riferimenti normativi.`

// maxRequestMessages bounds the inbound conversation; longer histories must
// be truncated by the caller.
const maxRequestMessages = 200

// stepValidate terminates invalid requests at Error400 before any side
// effects. Validation failures never reach the router or the cache.
func (p *Pipeline) stepValidate(s *State) (Node, error) {
	fail := func(detail string) (Node, error) {
		p.cfg.Logger.Debug("request rejected", "detail", detail)
		if err := s.setFinal(Response{ErrorType: ErrorTypeValidation, StatusCode: 400}); err != nil {
			return NodeError400, err
		}
		return NodeError400, nil
	}

	if len(s.Messages) == 0 {
		return fail("empty conversation")
	}
	if len(s.Messages) > maxRequestMessages {
		return fail("conversation too long")
	}
	text, ok := chat.LatestUserText(s.Messages)
	if !ok {
		return fail("no user message")
	}
	if chat.TrimmedEmpty(text) {
		return fail("blank user message")
	}
	return NodePrivacy, nil
}

// stepPrivacy redacts PII spans from user content before the text reaches
// any external system.
func (p *Pipeline) stepPrivacy(s *State) (Node, error) {
	s.PIIFlags = redactMessages(s.Messages)
	return NodePII, nil
}

// stepPII records what the privacy pass found. Flags ride along to usage
// accounting; they never block the request.
func (p *Pipeline) stepPII(s *State) (Node, error) {
	if len(s.PIIFlags) > 0 {
		p.cfg.Logger.Info("pii redacted",
			"session_id", s.Request.SessionID,
			"flags", piiSummary(s.PIIFlags),
		)
	}
	return NodeClassify, nil
}

// stepClassify degrades to "no classification" on error; downstream
// components all accept a nil classification.
func (p *Pipeline) stepClassify(ctx context.Context, s *State) (Node, error) {
	c, err := p.cfg.Classifier.Classify(ctx, s.Messages)
	if err != nil {
		p.cfg.Logger.Warn("classification failed, continuing without", "error", err)
		c = nil
	}
	s.Classification = c
	return NodeGoldenGate, nil
}

// stepGoldenGate runs the fast-path gate and, when the gate allows it,
// checks whether a stored golden answer is actually servable under the
// two-condition rule (confidence threshold and epoch comparison).
func (p *Pipeline) stepGoldenGate(ctx context.Context, s *State) (Node, error) {
	text, _ := chat.LatestUserText(s.Messages)
	result := golden.Evaluate(text, len(s.Request.Attachments) > 0)
	s.Gate = &result
	s.Mode = p.selectStreamMode(s)

	if result.Decision != golden.Eligible || !result.AllowsGoldenLookup {
		return NodeRetrieve, nil
	}

	answer, ok := p.cfg.GoldenStore.Lookup(ctx, text)
	if !ok {
		return NodeRetrieve, nil
	}
	s.Golden = answer

	kbEpoch := p.cfg.Epochs.KBEpoch(ctx)
	if !golden.CanServeFromGolden(answer.Confidence, kbEpoch, answer.Epoch, p.cfg.ConfidenceThreshold) {
		// Keep the answer as context for prompting, but generate fresh.
		return NodeRetrieve, nil
	}
	return NodeGoldenLookup, nil
}

// stepGoldenLookup serves the stored answer, bypassing retrieval and
// generation entirely.
func (p *Pipeline) stepGoldenLookup(ctx context.Context, s *State, emit provider.StreamFunc) (Node, error) {
	s.CacheHit = true
	s.LatencyMS = cache.SyntheticHitLatencyMS

	if emit != nil {
		if err := emit(ctx, provider.Chunk{ContentDelta: s.Golden.Content}); err != nil {
			return NodeEnd, fmt.Errorf("stream golden answer: %w", err)
		}
	}
	if err := s.setFinal(Response{Content: s.Golden.Content, StatusCode: 200}); err != nil {
		return NodeEnd, err
	}

	p.cfg.Billing.Record(billing.Event{
		UserID:    s.Request.UserID,
		SessionID: s.Request.SessionID,
		CacheHit:  true,
		LatencyMS: cache.SyntheticHitLatencyMS,
		PIIFlags:  s.PIIFlags,
	})
	p.persistConversation(ctx, s, chat.Assistant(s.Golden.Content))
	return NodeEnd, nil
}

// stepRetrieve degrades to "no context" on search failure.
func (p *Pipeline) stepRetrieve(ctx context.Context, s *State) (Node, error) {
	text, _ := chat.LatestUserText(s.Messages)
	hits, err := p.cfg.Searcher.RetrieveTopK(ctx, text, p.cfg.RetrieveTopK)
	if err != nil {
		p.cfg.Logger.Warn("retrieval failed, continuing without context", "error", err)
		hits = nil
	}
	s.Hits = hits
	return NodeKBDelta, nil
}

// stepKBDelta decides whether the fresh hits invalidate the golden context.
func (p *Pipeline) stepKBDelta(s *State) (Node, error) {
	var meta *golden.Metadata
	if s.Golden != nil {
		meta = &s.Golden.Meta
	}
	result := p.cfg.Delta.Evaluate(s.Hits, meta)
	s.Delta = &result

	p.cfg.Logger.Debug("knowledge delta",
		"decision", result.Decision,
		"reason", result.Reason,
	)
	return NodeSelectPrompt, nil
}

// stepSelectPrompt assembles the system prompt: the assistant persona plus
// fresh context when the delta says to merge it, else the golden content
// when available.
func (p *Pipeline) stepSelectPrompt(s *State) (Node, error) {
	var b strings.Builder
	b.WriteString(basePrompt)

	if s.Delta != nil && s.Delta.ShouldMergeContext && len(s.Hits) > 0 {
		b.WriteString("\n\nContesto aggiornato dalla base di conoscenza:\n")
		for _, hit := range s.Hits {
			fmt.Fprintf(&b, "- %s: %s\n", hit.Title, hit.Content)
		}
	} else if s.Golden != nil {
		b.WriteString("\n\nRisposta di riferimento verificata:\n")
		b.WriteString(s.Golden.Content)
	}

	// The system prompt leads the conversation exactly once.
	prompt := chat.System(b.String())
	if len(s.Messages) > 0 && s.Messages[0].Role == chat.RoleSystem {
		s.Messages[0] = prompt
	} else {
		s.Messages = append([]chat.Message{prompt}, s.Messages...)
	}
	return NodeGenerate, nil
}

// stepGenerateOrCache consults the response cache and only on a miss runs
// the routed attempt loop. A hit records the synthetic latency; a miss is
// followed by a best-effort cache write.
func (p *Pipeline) stepGenerateOrCache(ctx context.Context, s *State, emit provider.StreamFunc) (Node, error) {
	decision := p.cfg.Router.Select(s.Classification)
	s.Decision = decision

	fingerprint := cache.Fingerprint(s.Messages, decision.Model, p.cfg.Temperature)
	if entry, ok := p.cfg.Cache.Get(ctx, fingerprint); ok {
		resp := entry.Response
		s.LastResponse = &resp
		s.CacheHit = true
		s.LatencyMS = cache.SyntheticHitLatencyMS
		s.CostEUR = 0

		if emit != nil {
			if err := emit(ctx, provider.Chunk{ContentDelta: resp.Content}); err != nil {
				return NodeEnd, fmt.Errorf("stream cached answer: %w", err)
			}
		}
		s.Messages = append(s.Messages, assistantMessage(&resp))
		return NodeToolCheck, nil
	}

	req := provider.Request{
		Messages:    s.Messages,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
	}
	if p.toolsAttached(s) {
		req.Tools = p.cfg.Tools.Definitions()
	}

	var (
		result *router.Result
		err    error
	)
	if emit != nil {
		result, err = p.cfg.Router.ExecuteStream(ctx, s.Classification, req, p.dedupFilter(emit))
	} else {
		result, err = p.cfg.Router.Execute(ctx, s.Classification, req)
	}
	if err != nil {
		// Exhausted provider budgets terminate the request abnormally, but
		// the caller still gets a structured response.
		if ferr := s.setFinal(Response{ErrorType: ErrorTypeProvider, StatusCode: 502}); ferr != nil {
			return NodeEnd, ferr
		}
		return NodeEnd, fmt.Errorf("generation failed: %w", err)
	}

	s.Decision = result.Decision
	s.LastResponse = result.Response
	s.CacheHit = false
	s.LatencyMS = result.LatencyMS
	s.CostEUR += result.Response.CostEstimateEUR

	// Responses still carrying tool calls are intermediate; only final
	// answers are worth sharing across requests.
	if len(result.Response.ToolCalls) == 0 {
		p.cfg.Cache.Put(ctx, fingerprint, s.cachedEntry())
	}

	s.Messages = append(s.Messages, assistantMessage(result.Response))
	return NodeToolCheck, nil
}

// stepToolCheck loops back through tool execution while the model keeps
// requesting calls and the budget allows.
func (p *Pipeline) stepToolCheck(s *State) (Node, error) {
	if s.LastResponse == nil || len(s.LastResponse.ToolCalls) == 0 {
		return NodeFinalize, nil
	}

	if s.ToolIterations >= p.toolBudget() {
		p.cfg.Logger.Warn("tool loop budget exhausted",
			"iterations", s.ToolIterations,
			"budget", p.toolBudget(),
		)
		return NodeFinalize, nil
	}
	return NodeToolExecute, nil
}

// stepToolExecute runs every requested call and appends the results as
// tool-role messages. Execution errors come back as result payloads, never
// as pipeline failures.
func (p *Pipeline) stepToolExecute(ctx context.Context, s *State) (Node, error) {
	for _, call := range s.LastResponse.ToolCalls {
		if err := ctx.Err(); err != nil {
			return NodeEnd, fmt.Errorf("pipeline canceled during tool execution: %w", err)
		}
		s.Messages = append(s.Messages, p.cfg.Tools.ExecuteCall(ctx, call))
	}
	s.ToolIterations++
	return NodeGenerate, nil
}

// stepFinalize sets the single terminal response, records usage, and
// persists the conversation.
func (p *Pipeline) stepFinalize(ctx context.Context, s *State) (Node, error) {
	content := ""
	if s.LastResponse != nil {
		content = s.LastResponse.Content
	}
	if err := s.setFinal(Response{Content: content, StatusCode: 200}); err != nil {
		return NodeEnd, err
	}

	event := billing.Event{
		UserID:    s.Request.UserID,
		SessionID: s.Request.SessionID,
		CostEUR:   s.CostEUR,
		LatencyMS: s.LatencyMS,
		CacheHit:  s.CacheHit,
		PIIFlags:  s.PIIFlags,
	}
	if s.LastResponse != nil {
		event.Provider = s.LastResponse.Provider
		event.Model = s.LastResponse.Model
	}
	p.cfg.Billing.Record(event)

	p.persistConversation(ctx, s)
	return NodeEnd, nil
}

// persistConversation checkpoints the conversation and refreshes the
// history cache. Both are best-effort: failures are logged, never fatal.
func (p *Pipeline) persistConversation(ctx context.Context, s *State, extra ...chat.Message) {
	msgs := append(chat.Clone(s.Messages), extra...)

	if p.cfg.History != nil {
		p.cfg.History.Put(s.Request.SessionID, msgs)
	}
	if p.cfg.Checkpoints == nil {
		return
	}
	err := p.cfg.Checkpoints.Put(ctx, &checkpoint.State{
		SessionID: s.Request.SessionID,
		UserID:    s.Request.UserID,
		Messages:  msgs,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		p.cfg.Logger.Warn("checkpoint write failed",
			"session_id", s.Request.SessionID,
			"error", err,
		)
	}
}

// toolBudget is the maximum number of tool-loop iterations: shared with the
// generation retry budget by default, or a dedicated cap.
func (p *Pipeline) toolBudget() int {
	if p.cfg.ToolLoopSharedBudget {
		return p.cfg.MaxRetries
	}
	return p.cfg.MaxToolIterations
}

// toolsAttached reports whether this request carries the tool set. Buffered
// runs follow the classification; streaming runs follow the selected mode
// (direct mode streams with no tool list).
func (p *Pipeline) toolsAttached(s *State) bool {
	if s.Mode == ModeDirect {
		return false
	}
	if s.Mode == ModePipeline {
		return true
	}
	return requiresTools(s.Classification)
}

func assistantMessage(resp *provider.Response) chat.Message {
	msg := chat.Assistant(resp.Content)
	msg.ToolCalls = resp.ToolCalls
	return msg
}
