package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a mutex-guarded in-process Store for single-process
// deployments and tests.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]Entry
}

// NewMemory creates an empty in-process history store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]Entry)}
}

func (m *Memory) Append(_ context.Context, userID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = append(m.entries[userID], Entry{
		ID:           uuid.NewString(),
		UserID:       userID,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	})
	return nil
}

func (m *Memory) RecentHashes(_ context.Context, userID string, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[userID]
	hashes := make([]string, 0, n)
	for i := len(entries) - 1; i >= 0 && len(hashes) < n; i-- {
		hashes = append(hashes, entries[i].PasswordHash)
	}
	return hashes, nil
}

func (m *Memory) Prune(_ context.Context, userID string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[userID]
	if keep < 0 {
		keep = 0
	}
	if len(entries) > keep {
		trimmed := make([]Entry, keep)
		copy(trimmed, entries[len(entries)-keep:])
		m.entries[userID] = trimmed
	}
	return nil
}
