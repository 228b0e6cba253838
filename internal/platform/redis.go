package platform

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConnection is a hub dealing with the redis client backing the
// entity-graph read-through cache, grounded on common/mredis.
type RedisConnection struct {
	ConnectionStringSource string

	Client    *redis.Client
	Connected bool
	Logger    Logger
}

// Connect opens and pings the redis client.
func (rc *RedisConnection) Connect(ctx context.Context) error {
	logger := rc.logger()
	logger.Info("connecting to redis")

	opts, err := redis.ParseURL(rc.ConnectionStringSource)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("connected to redis")

	rc.Connected = true
	rc.Client = client

	return nil
}

// GetClient returns the redis client, connecting lazily if necessary.
func (rc *RedisConnection) GetClient(ctx context.Context) (*redis.Client, error) {
	if rc.Client == nil {
		if err := rc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return rc.Client, nil
}

func (rc *RedisConnection) logger() Logger {
	if rc.Logger != nil {
		return rc.Logger
	}

	return &NoneLogger{}
}
