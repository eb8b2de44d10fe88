// Package checkpoint persists conversation state per session so a
// conversation survives process restarts. The Postgres store is the
// production backend; Memory serves tests and degraded (checkpointer-less)
// operation in non-strict deployments.
package checkpoint

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fiscogo/fisco/internal/chat"
)

// ErrNotFound is returned when no state exists for a session.
var ErrNotFound = errors.New("checkpoint: session not found")

// State is the conversation checkpoint for one session.
type State struct {
	SessionID uuid.UUID      `json:"session_id"`
	UserID    string         `json:"user_id"`
	Messages  []chat.Message `json:"messages"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// clone deep-copies the state so stored and returned values never share
// backing arrays with callers.
func (s *State) clone() *State {
	return &State{
		SessionID: s.SessionID,
		UserID:    s.UserID,
		UpdatedAt: s.UpdatedAt,
		Messages:  chat.Clone(s.Messages),
	}
}

// Store is the conversation checkpoint boundary. Put is an upsert keyed by
// session id; all operations are transactional per session.
type Store interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*State, error)
	Put(ctx context.Context, state *State) error
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*State
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[uuid.UUID]*State)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, sessionID uuid.UUID) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.clone(), nil
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, state *State) error {
	if state == nil {
		return errors.New("checkpoint: state is nil")
	}
	stored := state.clone()
	stored.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[state.SessionID] = stored
	return nil
}

// Delete implements Store. Deleting an absent session is not an error.
func (m *Memory) Delete(_ context.Context, sessionID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}
