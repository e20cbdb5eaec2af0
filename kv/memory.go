package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is a mutex-guarded in-process Store. Expiry is lazy: entries are
// dropped when read after their deadline. Suitable for single-process
// deployments and tests only.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// SetTimeFunc overrides the clock, for expiry tests.
func (m *Memory) SetTimeFunc(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Del(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, key)
	return nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if e, ok := m.live(key); ok {
		parsed, err := strconv.ParseInt(e.value, 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++

	e := m.entries[key]
	e.value = strconv.FormatInt(n, 10)
	m.entries[key] = e
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return ErrNotFound
	}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	} else {
		e.expiresAt = time.Time{}
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return 0, nil
	}
	return e.expiresAt.Sub(m.now()), nil
}

// live returns the entry for key, dropping it first if expired. Callers
// must hold mu.
func (m *Memory) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(m.now()) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
