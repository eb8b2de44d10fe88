package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/fiscogo/fisco/internal/log"
	"github.com/fiscogo/fisco/internal/provider"
)

// SyntheticHitLatencyMS is the fixed latency recorded for usage accounting
// on a cache hit, instead of a measured value.
const SyntheticHitLatencyMS = 1.0

// Entry is one cached generation result.
type Entry struct {
	Response  provider.Response `json:"response"`
	CreatedAt time.Time         `json:"created_at"`
}

// ResponseCache stores generation results keyed by fingerprint. A hit
// short-circuits generation entirely. Writes are best-effort upserts; two
// concurrent writers for the same fingerprint are expected to race (last
// write wins, values are equivalent).
type ResponseCache interface {
	Get(ctx context.Context, fingerprint string) (*Entry, bool)
	Put(ctx context.Context, fingerprint string, entry *Entry)
}

const redisKeyPrefix = "fisco:response:"

// RedisCache backs ResponseCache with Redis, sharing entries across
// processes. Entries expire after the configured TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger log.Logger
}

// NewRedisCache wraps an existing Redis client. A zero ttl means no
// expiration.
func NewRedisCache(client *redis.Client, ttl time.Duration, logger log.Logger) (*RedisCache, error) {
	if client == nil {
		return nil, errors.New("cache: redis client is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger}, nil
}

// Get implements ResponseCache. Any Redis or decoding failure is a miss.
func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+fingerprint).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("response cache read failed", "fingerprint", fingerprint, "error", err)
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("response cache entry corrupt", "fingerprint", fingerprint, "error", err)
		return nil, false
	}
	return &entry, true
}

// Put implements ResponseCache. Failures are logged and dropped.
func (c *RedisCache) Put(ctx context.Context, fingerprint string, entry *Entry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		c.logger.Warn("response cache encode failed", "fingerprint", fingerprint, "error", err)
		return
	}
	if err := c.client.Set(ctx, redisKeyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("response cache write failed", "fingerprint", fingerprint, "error", err)
	}
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// MemoryCache backs ResponseCache with an in-process LRU for deployments
// without Redis. Safe for concurrent use.
type MemoryCache struct {
	entries *lru.Cache[string, *Entry]
}

// NewMemoryCache creates an LRU-bounded in-process cache.
func NewMemoryCache(size int) (*MemoryCache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New[string, *Entry](size)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &MemoryCache{entries: entries}, nil
}

// Get implements ResponseCache.
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*Entry, bool) {
	return c.entries.Get(fingerprint)
}

// Put implements ResponseCache.
func (c *MemoryCache) Put(_ context.Context, fingerprint string, entry *Entry) {
	c.entries.Add(fingerprint, entry)
}
