package cache

import (
	"fmt"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/fiscogo/fisco/internal/chat"
)

// HistoryCache keeps recently used conversation histories in process so
// history reads skip the checkpoint store. It must be invalidated explicitly
// when a history is cleared; otherwise entries age out via LRU eviction.
type HistoryCache struct {
	sessions *lru.Cache[uuid.UUID, []chat.Message]
}

// NewHistoryCache creates a history cache bounded to size sessions.
func NewHistoryCache(size int) (*HistoryCache, error) {
	if size <= 0 {
		size = 256
	}
	sessions, err := lru.New[uuid.UUID, []chat.Message](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &HistoryCache{sessions: sessions}, nil
}

// Get returns a copy of the cached history so callers cannot mutate the
// cached slice.
func (c *HistoryCache) Get(sessionID uuid.UUID) ([]chat.Message, bool) {
	msgs, ok := c.sessions.Get(sessionID)
	if !ok {
		return nil, false
	}
	return chat.Clone(msgs), true
}

// Put stores a copy of the history for the session.
func (c *HistoryCache) Put(sessionID uuid.UUID, msgs []chat.Message) {
	c.sessions.Add(sessionID, chat.Clone(msgs))
}

// Invalidate drops the session's cached history. Required on history-clear
// so a stale conversation can never be served after deletion.
func (c *HistoryCache) Invalidate(sessionID uuid.UUID) {
	c.sessions.Remove(sessionID)
}
