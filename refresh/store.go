// Package refresh tracks refresh-token families: one lineage of refresh
// tokens per session origin, rotated on every refresh. Presenting a
// superseded token hash is treated as theft and revokes the whole family.
//
// Every Store implementation must make Rotate a single atomic
// compare-and-set against the persisted row. A read-then-write pair would
// let two concurrent refreshes both succeed and skip reuse detection.
package refresh

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no family matches the id or hash.
	ErrNotFound = errors.New("refresh: family not found")
	// ErrRevoked is returned when the target family is already revoked.
	ErrRevoked = errors.New("refresh: family revoked")
	// ErrReuse is returned by Rotate when the presented hash is stale. The
	// family has already been revoked by the time this error is returned.
	ErrReuse = errors.New("refresh: superseded token presented")
)

// Family is one refresh-token lineage. CurrentTokenHash is the SHA-256 hex
// of the only refresh token that can rotate the family; the raw token is
// never stored. Revoked is terminal.
type Family struct {
	ID               string    `db:"id"`
	UserID           string    `db:"user_id"`
	CurrentTokenHash string    `db:"current_token_hash"`
	Revoked          bool      `db:"revoked"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Store persists refresh-token families. At most one non-revoked family
// holds a given token hash at any time.
type Store interface {
	// Create starts a new active family with the given id for userID,
	// holding tokenHash. The id is caller-generated because refresh tokens
	// embed it as a claim before the family row exists.
	Create(ctx context.Context, id, userID, tokenHash string) (Family, error)
	// Get returns the family by id.
	Get(ctx context.Context, id string) (Family, error)
	// FindByTokenHash returns the active family currently holding hash.
	FindByTokenHash(ctx context.Context, hash string) (Family, error)
	// Rotate atomically replaces oldHash with newHash. A revoked family
	// yields ErrRevoked; a hash mismatch revokes the entire family and
	// yields ErrReuse; an unknown id yields ErrNotFound.
	Rotate(ctx context.Context, id, oldHash, newHash string) error
	// RevokeFamily terminally revokes one family. Idempotent.
	RevokeFamily(ctx context.Context, id string) error
	// RevokeAllForUser revokes every family belonging to userID.
	RevokeAllForUser(ctx context.Context, userID string) error
	// Prune deletes revoked families whose last update is older than maxAge.
	Prune(ctx context.Context, maxAge time.Duration) error
}
