package kv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedis(client, "t")
}

func TestRedisSetGetWithPrefix(t *testing.T) {
	mr, r := newTestRedis(t)
	ctx := context.Background()

	if err := r.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := r.Get(ctx, "k")
	if err != nil || val != "v" {
		t.Fatalf("Get = %q, %v; want v, nil", val, err)
	}

	// Keys are namespaced under the prefix.
	if !mr.Exists("t:k") {
		t.Fatal("prefixed key missing in redis")
	}

	if _, err := r.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing err = %v, want ErrNotFound", err)
	}
}

func TestRedisIncrExpireAndTTL(t *testing.T) {
	mr, r := newTestRedis(t)
	ctx := context.Background()

	n, err := r.Incr(ctx, "counter")
	if err != nil || n != 1 {
		t.Fatalf("Incr = %d, %v; want 1, nil", n, err)
	}
	if err := r.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	ttl, err := r.TTL(ctx, "counter")
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("TTL = %v, %v; want (0, 1m]", ttl, err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := r.Get(ctx, "counter"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry err = %v, want ErrNotFound", err)
	}
}

func TestRedisTTLSentinels(t *testing.T) {
	_, r := newTestRedis(t)
	ctx := context.Background()

	if _, err := r.TTL(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("TTL missing err = %v, want ErrNotFound", err)
	}

	if err := r.Set(ctx, "forever", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ttl, err := r.TTL(ctx, "forever")
	if err != nil || ttl != 0 {
		t.Fatalf("TTL without expiry = %v, %v; want 0, nil", ttl, err)
	}
}
