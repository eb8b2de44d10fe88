package pipeline

import (
	"context"

	"github.com/fiscogo/fisco/internal/provider"
)

// RunStream executes the graph in streaming mode: fn receives generation
// deltas as they arrive (tool-loop chatter filtered out) and exactly one
// terminal Done chunk after the graph completes, on success and on handled
// failure alike.
//
// Cancellation is cooperative: if fn returns an error (consumer stopped
// reading), the current provider call is aborted and no further attempts or
// tool executions are issued.
func (p *Pipeline) RunStream(ctx context.Context, req Request, fn provider.StreamFunc) (*State, error) {
	state, err := p.run(ctx, req, fn)

	if ctx.Err() == nil {
		if emitErr := fn(ctx, provider.Chunk{Done: true}); emitErr != nil && err == nil {
			err = emitErr
		}
	}
	return state, err
}

// dedupFilter adapts the consumer callback for provider streams: per-call
// Done markers are swallowed (the request emits a single terminal marker),
// and deltas longer than the configured threshold are treated as
// whole-message duplicates from tool-loop regeneration and suppressed
// rather than streamed.
func (p *Pipeline) dedupFilter(emit provider.StreamFunc) provider.StreamFunc {
	return func(ctx context.Context, chunk provider.Chunk) error {
		if chunk.Done {
			return nil
		}
		if len(chunk.ContentDelta) > p.cfg.StreamDedupThreshold {
			return nil
		}
		return emit(ctx, chunk)
	}
}
