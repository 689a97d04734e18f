package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// setNXer is the slice of the redis client the store needs.
type setNXer interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Redis records keys with SET NX EX so every replica shares one view.
type Redis struct {
	client setNXer
	ttl    time.Duration
	prefix string
}

// NewRedis returns a Redis store over client.
func NewRedis(client setNXer, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: "dedup"}
}

// OpenRedis parses a redis:// URL and returns a connected client.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Seen implements Store.
func (r *Redis) Seen(ctx context.Context, k Key) (bool, error) {
	if k.EventID == "" {
		return false, nil
	}
	set, err := r.client.SetNX(ctx, r.key(k), 1, r.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

func (r *Redis) key(k Key) string {
	return r.prefix + ":" + k.Tenant + ":" + k.Kind + ":" + k.EventID
}
