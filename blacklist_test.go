package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/keyline/authcore/kv"
)

func newTestBlacklist() (*Blacklist, *time.Time) {
	clock := time.Now()
	store := kv.NewMemory()
	store.SetTimeFunc(func() time.Time { return clock })

	b := NewBlacklist(store)
	b.now = func() time.Time { return clock }
	return b, &clock
}

func TestBlacklistAddAndCheck(t *testing.T) {
	b, clock := newTestBlacklist()
	ctx := context.Background()

	hash := HashToken("some.jwt.token")
	if err := b.Add(ctx, hash, clock.Add(time.Hour)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	revoked, err := b.IsBlacklisted(ctx, hash)
	if err != nil {
		t.Fatalf("IsBlacklisted failed: %v", err)
	}
	if !revoked {
		t.Fatal("added hash not reported revoked")
	}

	other, err := b.IsBlacklisted(ctx, HashToken("another.jwt.token"))
	if err != nil {
		t.Fatalf("IsBlacklisted failed: %v", err)
	}
	if other {
		t.Fatal("unrelated hash reported revoked")
	}
}

func TestBlacklistEntryExpiresWithToken(t *testing.T) {
	b, clock := newTestBlacklist()
	ctx := context.Background()

	hash := HashToken("some.jwt.token")
	if err := b.Add(ctx, hash, clock.Add(time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	*clock = clock.Add(2 * time.Minute)

	revoked, err := b.IsBlacklisted(ctx, hash)
	if err != nil {
		t.Fatalf("IsBlacklisted failed: %v", err)
	}
	if revoked {
		t.Fatal("entry outlived the token it revokes")
	}
}

func TestBlacklistAddExpiredTokenIsNoOp(t *testing.T) {
	b, clock := newTestBlacklist()
	ctx := context.Background()

	hash := HashToken("some.jwt.token")
	if err := b.Add(ctx, hash, clock.Add(-time.Minute)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	revoked, err := b.IsBlacklisted(ctx, hash)
	if err != nil {
		t.Fatalf("IsBlacklisted failed: %v", err)
	}
	if revoked {
		t.Fatal("expired token was blacklisted")
	}
}

func TestHashTokenIsStableAndHex(t *testing.T) {
	a := HashToken("raw")
	b := HashToken("raw")
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("hash length = %d, want 64", len(a))
	}
	if a == HashToken("raw2") {
		t.Fatal("distinct tokens collided")
	}
}
