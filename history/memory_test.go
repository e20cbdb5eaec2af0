package history

import (
	"context"
	"testing"
)

func TestMemoryRecentHashesNewestFirst(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, h := range []string{"hash-1", "hash-2", "hash-3"} {
		if err := m.Append(ctx, "u1", h); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	hashes, err := m.RecentHashes(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentHashes failed: %v", err)
	}
	if len(hashes) != 2 || hashes[0] != "hash-3" || hashes[1] != "hash-2" {
		t.Fatalf("hashes = %v, want [hash-3 hash-2]", hashes)
	}

	// Asking for more than exists returns what there is.
	all, err := m.RecentHashes(ctx, "u1", 10)
	if err != nil || len(all) != 3 {
		t.Fatalf("RecentHashes = %v, %v; want 3 entries", all, err)
	}

	// Unknown users have empty history, not an error.
	none, err := m.RecentHashes(ctx, "u2", 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("RecentHashes unknown user = %v, %v; want empty", none, err)
	}
}

func TestMemoryPruneKeepsNewest(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, h := range []string{"hash-1", "hash-2", "hash-3", "hash-4"} {
		if err := m.Append(ctx, "u1", h); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := m.Prune(ctx, "u1", 2); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	hashes, err := m.RecentHashes(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("RecentHashes failed: %v", err)
	}
	if len(hashes) != 2 || hashes[0] != "hash-4" || hashes[1] != "hash-3" {
		t.Fatalf("hashes = %v, want [hash-4 hash-3]", hashes)
	}

	// Pruning an unknown user is a no-op.
	if err := m.Prune(ctx, "u2", 2); err != nil {
		t.Fatalf("Prune unknown user failed: %v", err)
	}
}
