package signal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "presence:"

// RedisRegistry keeps presence in Redis so every instance behind the load
// balancer sees the same online set. TTL expiry is delegated to Redis.
type RedisRegistry struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRegistry creates a registry backed by Redis.
func NewRedisRegistry(addr, password string, db int, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRegistry{client: rdb, ttl: ttl}
}

func (r *RedisRegistry) Heartbeat(ctx context.Context, userID string) error {
	if err := r.client.Set(ctx, presencePrefix+userID, "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("redis presence heartbeat: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Offline(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, presencePrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis presence offline: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Online(ctx context.Context) ([]string, error) {
	var online []string
	iter := r.client.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		online = append(online, strings.TrimPrefix(iter.Val(), presencePrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis presence scan: %w", err)
	}
	return online, nil
}

func (r *RedisRegistry) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, presencePrefix+userID).Result()
	if err != nil {
		return false, fmt.Errorf("redis presence lookup: %w", err)
	}
	return n > 0, nil
}
