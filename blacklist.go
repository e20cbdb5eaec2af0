package authcore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/keyline/authcore/kv"
)

// HashToken returns the SHA-256 hex digest of a raw token string. Raw
// tokens are never persisted; every store keyed by token works on this.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Blacklist is the logout-time denylist for otherwise-stateless tokens.
// Entries live exactly as long as the token they revoke would have, after
// which the token fails verification on its own and the entry is redundant.
type Blacklist struct {
	store kv.Store
	now   func() time.Time
}

// NewBlacklist creates a Blacklist over store.
func NewBlacklist(store kv.Store) *Blacklist {
	return &Blacklist{store: store, now: time.Now}
}

func blacklistKey(tokenHash string) string { return "bl:" + tokenHash }

// Add revokes tokenHash until expiresAt. Adding an already-present hash is
// a no-op; adding one that is already past expiry is also a no-op.
func (b *Blacklist) Add(ctx context.Context, tokenHash string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(b.now())
	if ttl <= 0 {
		return nil
	}
	if err := b.store.Set(ctx, blacklistKey(tokenHash), "1", ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether tokenHash has an unexpired entry.
func (b *Blacklist) IsBlacklisted(ctx context.Context, tokenHash string) (bool, error) {
	_, err := b.store.Get(ctx, blacklistKey(tokenHash))
	if err == kv.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// Prune exists for parity with row-oriented backends. TTL-backed stores
// expire entries themselves, so there is nothing to do here.
func (b *Blacklist) Prune(context.Context) error {
	return nil
}
