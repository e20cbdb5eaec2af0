package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a shared Redis instance, the required choice
// once more than one process serves traffic.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis wraps client. prefix namespaces every key and may be empty.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv redis get: %w", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("kv redis set: %w", err)
	}
	return nil
}

func (r *Redis) Del(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("kv redis del: %w", err)
	}
	return nil
}

func (r *Redis) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv redis incr: %w", err)
	}
	return n, nil
}

func (r *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := r.client.Expire(ctx, r.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("kv redis expire: %w", err)
	}
	return nil
}

func (r *Redis) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("kv redis ttl: %w", err)
	}
	// go-redis reports missing keys as -2 and keys without expiry as -1.
	switch d {
	case time.Duration(-2):
		return 0, ErrNotFound
	case time.Duration(-1):
		return 0, nil
	default:
		return d, nil
	}
}
