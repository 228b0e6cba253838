package entitygraph

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mcarvalho21/nova-sub000/internal/domain/entitydom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// RedisCache implements Cache on top of the shared redis client,
// grounded on common/mredis. Entries are msgpack-encoded, the same
// compact binary encoding the teacher's cache layers favor over JSON for
// hot-path reads.
type RedisCache struct {
	conn   *platform.RedisConnection
	logger platform.Logger
}

// NewRedisCache builds a RedisCache.
func NewRedisCache(conn *platform.RedisConnection, logger platform.Logger) *RedisCache {
	if logger == nil {
		logger = &platform.NoneLogger{}
	}

	return &RedisCache{conn: conn, logger: logger}
}

// Get returns the cached entity for key, if present and decodable.
func (c *RedisCache) Get(ctx context.Context, key string) (*entitydom.Entity, bool) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		c.logger.Warnf("entity cache unavailable: %v", err)
		return nil, false
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var entity entitydom.Entity
	if err := msgpack.Unmarshal(raw, &entity); err != nil {
		c.logger.Warnf("entity cache decode failed for %s: %v", key, err)
		return nil, false
	}

	return &entity, true
}

// Set stores entity under key with ttl.
func (c *RedisCache) Set(ctx context.Context, key string, entity *entitydom.Entity, ttl time.Duration) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		return
	}

	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return
	}

	if err := client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warnf("entity cache set failed for %s: %v", key, err)
	}
}

// Invalidate removes key from the cache.
func (c *RedisCache) Invalidate(ctx context.Context, key string) {
	client, err := c.conn.GetClient(ctx)
	if err != nil {
		return
	}

	if err := client.Del(ctx, key).Err(); err != nil {
		c.logger.Warnf("entity cache invalidate failed for %s: %v", key, err)
	}
}
