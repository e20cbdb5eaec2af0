package refresh

import (
	"context"
	"sync"
	"time"
)

// Memory is a mutex-guarded in-process Store. The single mutex makes every
// Rotate a compare-and-set; no two goroutines can interleave the hash check
// and the swap. Per-process only.
type Memory struct {
	mu       sync.Mutex
	families map[string]*Family
	byHash   map[string]string
	byUser   map[string][]string
	now      func() time.Time
}

// NewMemory creates an empty in-process family store.
func NewMemory() *Memory {
	return &Memory{
		families: make(map[string]*Family),
		byHash:   make(map[string]string),
		byUser:   make(map[string][]string),
		now:      time.Now,
	}
}

func (m *Memory) Create(_ context.Context, id, userID, tokenHash string) (Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	fam := &Family{
		ID:               id,
		UserID:           userID,
		CurrentTokenHash: tokenHash,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	m.families[fam.ID] = fam
	m.byHash[tokenHash] = fam.ID
	m.byUser[userID] = append(m.byUser[userID], fam.ID)
	return *fam, nil
}

func (m *Memory) Get(_ context.Context, id string) (Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam, ok := m.families[id]
	if !ok {
		return Family{}, ErrNotFound
	}
	return *fam, nil
}

func (m *Memory) FindByTokenHash(_ context.Context, hash string) (Family, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byHash[hash]
	if !ok {
		return Family{}, ErrNotFound
	}
	fam := m.families[id]
	if fam == nil || fam.Revoked {
		return Family{}, ErrNotFound
	}
	return *fam, nil
}

func (m *Memory) Rotate(_ context.Context, id, oldHash, newHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam, ok := m.families[id]
	if !ok {
		return ErrNotFound
	}
	if fam.Revoked {
		return ErrRevoked
	}
	if fam.CurrentTokenHash != oldHash {
		m.revokeLocked(fam)
		return ErrReuse
	}

	delete(m.byHash, oldHash)
	fam.CurrentTokenHash = newHash
	fam.UpdatedAt = m.now()
	m.byHash[newHash] = fam.ID
	return nil
}

func (m *Memory) RevokeFamily(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fam, ok := m.families[id]
	if !ok {
		return ErrNotFound
	}
	m.revokeLocked(fam)
	return nil
}

func (m *Memory) RevokeAllForUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.byUser[userID] {
		if fam, ok := m.families[id]; ok {
			m.revokeLocked(fam)
		}
	}
	return nil
}

func (m *Memory) Prune(_ context.Context, maxAge time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	for id, fam := range m.families {
		if fam.Revoked && fam.UpdatedAt.Before(cutoff) {
			delete(m.families, id)
			m.removeUserIndexLocked(fam.UserID, id)
		}
	}
	return nil
}

// revokeLocked marks fam revoked and drops its hash index. Callers must
// hold mu. Idempotent.
func (m *Memory) revokeLocked(fam *Family) {
	if fam.Revoked {
		return
	}
	fam.Revoked = true
	fam.UpdatedAt = m.now()
	delete(m.byHash, fam.CurrentTokenHash)
}

func (m *Memory) removeUserIndexLocked(userID, famID string) {
	ids := m.byUser[userID]
	for i, id := range ids {
		if id == famID {
			m.byUser[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byUser[userID]) == 0 {
		delete(m.byUser, userID)
	}
}
