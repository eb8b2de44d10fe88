package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/checkpoint"
)

// LoadHistory returns the stored conversation for a session, consulting the
// in-process history cache before the checkpoint store. An unknown session
// yields an empty history, not an error.
func (p *Pipeline) LoadHistory(ctx context.Context, sessionID uuid.UUID) ([]chat.Message, error) {
	if p.cfg.History != nil {
		if msgs, ok := p.cfg.History.Get(sessionID); ok {
			return msgs, nil
		}
	}
	if p.cfg.Checkpoints == nil {
		return nil, nil
	}

	state, err := p.cfg.Checkpoints.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load history: %w", err)
	}
	if p.cfg.History != nil {
		p.cfg.History.Put(sessionID, state.Messages)
	}
	return state.Messages, nil
}

// ClearHistory deletes the stored conversation and invalidates the history
// cache so a cleared session can never serve stale messages.
func (p *Pipeline) ClearHistory(ctx context.Context, sessionID uuid.UUID) error {
	if p.cfg.History != nil {
		p.cfg.History.Invalidate(sessionID)
	}
	if p.cfg.Checkpoints == nil {
		return nil
	}
	if err := p.cfg.Checkpoints.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
