// Package history persists past password hashes per user so the password
// policy can reject reuse. Records are append-only and pruned to the most
// recent N per user.
package history

import (
	"context"
	"time"
)

// Entry is one historical password hash.
type Entry struct {
	ID           string    `db:"id"`
	UserID       string    `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

// Store persists password history. Memory is per-process; Postgres is the
// durable choice.
type Store interface {
	Append(ctx context.Context, userID, passwordHash string) error
	// RecentHashes returns up to n hashes for userID, newest first.
	RecentHashes(ctx context.Context, userID string, n int) ([]string, error)
	// Prune drops all but the newest keep entries for userID.
	Prune(ctx context.Context, userID string, keep int) error
}
