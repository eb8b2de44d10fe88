package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiscogo/fisco/internal/chat"
	"github.com/fiscogo/fisco/internal/log"
)

// Postgres backs Store with a conversations table. Each operation runs in
// its own transaction keyed by session id; Put is an upsert so concurrent
// writers for the same session resolve last-write-wins.
type Postgres struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewPostgres wraps an existing pool. The pool outlives the store and is
// closed by the owner, not here.
func NewPostgres(pool *pgxpool.Pool, logger log.Logger) (*Postgres, error) {
	if pool == nil {
		return nil, errors.New("checkpoint: pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Postgres{pool: pool, logger: logger}, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, sessionID uuid.UUID) (*State, error) {
	var state *State
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		var (
			userID    string
			rawMsgs   []byte
			updatedAt time.Time
		)
		row := tx.QueryRow(ctx,
			`SELECT user_id, messages, updated_at FROM conversations WHERE session_id = $1`,
			sessionID)
		if err := row.Scan(&userID, &rawMsgs, &updatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select conversation: %w", err)
		}

		var msgs []chat.Message
		if err := json.Unmarshal(rawMsgs, &msgs); err != nil {
			return fmt.Errorf("decode conversation messages: %w", err)
		}
		state = &State{
			SessionID: sessionID,
			UserID:    userID,
			Messages:  msgs,
			UpdatedAt: updatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

// Put implements Store.
func (p *Postgres) Put(ctx context.Context, state *State) error {
	if state == nil {
		return errors.New("checkpoint: state is nil")
	}
	rawMsgs, err := json.Marshal(state.Messages)
	if err != nil {
		return fmt.Errorf("encode conversation messages: %w", err)
	}

	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO conversations (session_id, user_id, messages, updated_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (session_id)
			 DO UPDATE SET user_id = EXCLUDED.user_id,
			               messages = EXCLUDED.messages,
			               updated_at = now()`,
			state.SessionID, state.UserID, rawMsgs)
		if err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}
		return nil
	})
}

// Delete implements Store. Deleting an absent session is not an error.
func (p *Postgres) Delete(ctx context.Context, sessionID uuid.UUID) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM conversations WHERE session_id = $1`, sessionID); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
		return nil
	})
}
