package notify

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ReplayProtector marks an (endpoint, event) pair as delivered for a TTL.
type ReplayProtector interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisReplayProtector implements ReplayProtector with SETNX.
type RedisReplayProtector struct {
	Client *redis.Client
	Prefix string
}

// Acquire claims key. A false result means another attempt already holds it.
func (r RedisReplayProtector) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.Client == nil {
		return true, nil
	}
	return r.Client.SetNX(ctx, r.Prefix+key, "1", ttl).Result()
}

// Release drops key so a later retry can deliver again.
func (r RedisReplayProtector) Release(ctx context.Context, key string) error {
	if r.Client == nil {
		return nil
	}
	return r.Client.Del(ctx, r.Prefix+key).Err()
}
