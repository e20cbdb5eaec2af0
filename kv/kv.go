// Package kv defines the TTL'd key-value store the lockout and blacklist
// components are built on. The Memory implementation is per-process only;
// deployments running more than one instance must inject Redis so lockouts
// and revocations are visible across the fleet.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and TTL when the key does not exist or has
// expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a key-value store with per-key expiry and an atomic counter
// primitive. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	// Incr atomically increments the integer at key and returns the new
	// value, creating the key at 1 when absent.
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns the remaining lifetime of key, or ErrNotFound. A zero
	// duration means the key has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
