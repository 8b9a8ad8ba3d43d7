package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ConnectionsCache holds recently computed Connections. Implementations swallow
// their own errors; a cache failure only costs a recompute.
type ConnectionsCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*Connections, bool)
	Set(ctx context.Context, userID uuid.UUID, conns *Connections)
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
}

func connectionsKey(userID uuid.UUID) string {
	return "connections:" + userID.String()
}

// RedisConnectionsCache stores Connections as JSON in Redis
type RedisConnectionsCache struct {
	rdb *redis.Client
	ttl time.Duration
	log logrus.FieldLogger
}

// NewRedisConnectionsCache creates a Redis-backed cache with the given entry ttl
func NewRedisConnectionsCache(rdb *redis.Client, ttl time.Duration, log logrus.FieldLogger) *RedisConnectionsCache {
	return &RedisConnectionsCache{rdb: rdb, ttl: ttl, log: log}
}

func (c *RedisConnectionsCache) Get(ctx context.Context, userID uuid.UUID) (*Connections, bool) {
	data, err := c.rdb.Get(ctx, connectionsKey(userID)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.WithError(err).Warn("Connections cache read failed")
		return nil, false
	}

	var conns Connections
	if err := json.Unmarshal(data, &conns); err != nil {
		c.log.WithError(err).Warn("Discarding corrupt connections cache entry")
		return nil, false
	}
	return &conns, true
}

func (c *RedisConnectionsCache) Set(ctx context.Context, userID uuid.UUID, conns *Connections) {
	data, err := json.Marshal(conns)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, connectionsKey(userID), data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("Connections cache write failed")
	}
}

func (c *RedisConnectionsCache) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = connectionsKey(id)
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).Warn("Connections cache invalidation failed")
	}
}

type memoryEntry struct {
	conns   *Connections
	expires time.Time
}

// MemoryConnectionsCache is a process-local cache for single-instance deployments
type MemoryConnectionsCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryConnectionsCache creates an in-process cache with the given entry ttl
func NewMemoryConnectionsCache(ttl time.Duration) *MemoryConnectionsCache {
	return &MemoryConnectionsCache{
		entries: make(map[uuid.UUID]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryConnectionsCache) Get(_ context.Context, userID uuid.UUID) (*Connections, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userID]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, userID)
		return nil, false
	}
	return entry.conns, true
}

func (c *MemoryConnectionsCache) Set(_ context.Context, userID uuid.UUID, conns *Connections) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userID] = memoryEntry{conns: conns, expires: c.now().Add(c.ttl)}
}

func (c *MemoryConnectionsCache) Invalidate(_ context.Context, userIDs ...uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.entries, id)
	}
}

// NoopConnectionsCache never stores anything
type NoopConnectionsCache struct{}

func (NoopConnectionsCache) Get(context.Context, uuid.UUID) (*Connections, bool) { return nil, false }
func (NoopConnectionsCache) Set(context.Context, uuid.UUID, *Connections)        {}
func (NoopConnectionsCache) Invalidate(context.Context, ...uuid.UUID)            {}
