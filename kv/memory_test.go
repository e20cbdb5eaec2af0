package kv

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemorySetGetDel(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	val, err := m.Get(ctx, "k")
	if err != nil || val != "v" {
		t.Fatalf("Get = %q, %v; want v, nil", val, err)
	}

	if err := m.Del(ctx, "k"); err != nil {
		t.Fatalf("Del failed: %v", err)
	}
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after Del err = %v, want ErrNotFound", err)
	}

	// Deleting a missing key is not an error.
	if err := m.Del(ctx, "missing"); err != nil {
		t.Fatalf("Del missing failed: %v", err)
	}
}

func TestMemoryLazyExpiry(t *testing.T) {
	clock := time.Now()
	m := NewMemory()
	m.SetTimeFunc(func() time.Time { return clock })
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock = clock.Add(59 * time.Second)
	if _, err := m.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	clock = clock.Add(2 * time.Second)
	if _, err := m.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry err = %v, want ErrNotFound", err)
	}
}

func TestMemoryIncrAndExpire(t *testing.T) {
	clock := time.Now()
	m := NewMemory()
	m.SetTimeFunc(func() time.Time { return clock })
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := m.Incr(ctx, "counter")
		if err != nil || n != want {
			t.Fatalf("Incr = %d, %v; want %d, nil", n, err, want)
		}
	}

	if err := m.Expire(ctx, "counter", time.Minute); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}

	ttl, err := m.TTL(ctx, "counter")
	if err != nil || ttl != time.Minute {
		t.Fatalf("TTL = %v, %v; want 1m, nil", ttl, err)
	}

	clock = clock.Add(2 * time.Minute)

	// Counter restarts after expiry.
	n, err := m.Incr(ctx, "counter")
	if err != nil || n != 1 {
		t.Fatalf("Incr after expiry = %d, %v; want 1, nil", n, err)
	}
}

func TestMemoryExpireMissingKey(t *testing.T) {
	m := NewMemory()
	if err := m.Expire(context.Background(), "missing", time.Minute); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expire missing err = %v, want ErrNotFound", err)
	}
}

func TestMemoryTTLWithoutExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	ttl, err := m.TTL(ctx, "k")
	if err != nil || ttl != 0 {
		t.Fatalf("TTL = %v, %v; want 0, nil", ttl, err)
	}
}
