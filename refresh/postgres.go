package refresh

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// PostgresSchema creates the refresh_token_families table with its two
// lookup indexes. The partial unique index enforces that a token hash maps
// to at most one active family.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS refresh_token_families (
	id                 UUID PRIMARY KEY,
	user_id            TEXT NOT NULL,
	current_token_hash TEXT NOT NULL,
	revoked            BOOLEAN NOT NULL DEFAULT FALSE,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_rtf_user_id ON refresh_token_families (user_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_rtf_active_hash
	ON refresh_token_families (current_token_hash) WHERE NOT revoked;
`

// Postgres is a Store backed by a refresh_token_families table. Rotation is
// a conditional UPDATE keyed on both id and current hash; the mismatch path
// runs in a transaction with a row lock so racing rotations serialize at
// the database.
type Postgres struct {
	db *sqlx.DB
}

// NewPostgres wraps db. Call [Postgres.EnsureSchema] once at startup if the
// deployment does not manage migrations elsewhere.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// EnsureSchema applies [PostgresSchema].
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("create refresh_token_families schema: %w", err)
	}
	return nil
}

func (p *Postgres) Create(ctx context.Context, id, userID, tokenHash string) (Family, error) {
	fam := Family{
		ID:               id,
		UserID:           userID,
		CurrentTokenHash: tokenHash,
	}

	const q = `
INSERT INTO refresh_token_families (id, user_id, current_token_hash)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`
	if err := p.db.QueryRowxContext(ctx, q, fam.ID, fam.UserID, fam.CurrentTokenHash).
		Scan(&fam.CreatedAt, &fam.UpdatedAt); err != nil {
		return Family{}, fmt.Errorf("create family: %w", err)
	}
	return fam, nil
}

func (p *Postgres) Get(ctx context.Context, id string) (Family, error) {
	var fam Family
	const q = `SELECT id, user_id, current_token_hash, revoked, created_at, updated_at
FROM refresh_token_families WHERE id = $1`
	err := p.db.GetContext(ctx, &fam, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Family{}, ErrNotFound
	}
	if err != nil {
		return Family{}, fmt.Errorf("get family: %w", err)
	}
	return fam, nil
}

func (p *Postgres) FindByTokenHash(ctx context.Context, hash string) (Family, error) {
	var fam Family
	const q = `SELECT id, user_id, current_token_hash, revoked, created_at, updated_at
FROM refresh_token_families WHERE current_token_hash = $1 AND NOT revoked`
	err := p.db.GetContext(ctx, &fam, q, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return Family{}, ErrNotFound
	}
	if err != nil {
		return Family{}, fmt.Errorf("find family by hash: %w", err)
	}
	return fam, nil
}

func (p *Postgres) Rotate(ctx context.Context, id, oldHash, newHash string) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("rotate family: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const cas = `
UPDATE refresh_token_families
SET current_token_hash = $3, updated_at = now()
WHERE id = $1 AND current_token_hash = $2 AND NOT revoked`
	res, err := tx.ExecContext(ctx, cas, id, oldHash, newHash)
	if err != nil {
		return fmt.Errorf("rotate family: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return tx.Commit()
	}

	// CAS missed: lock the row to find out why, and cascade on mismatch.
	var fam Family
	const lock = `SELECT id, user_id, current_token_hash, revoked, created_at, updated_at
FROM refresh_token_families WHERE id = $1 FOR UPDATE`
	err = tx.GetContext(ctx, &fam, lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("rotate family: %w", err)
	}

	if fam.Revoked {
		return ErrRevoked
	}
	if fam.CurrentTokenHash == oldHash {
		// A concurrent commit landed between the CAS and the lock, restoring
		// the expected hash. The row lock is held now, so retry the swap.
		res, err := tx.ExecContext(ctx, cas, id, oldHash, newHash)
		if err != nil {
			return fmt.Errorf("rotate family: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("rotate family: row vanished under lock")
		}
		return tx.Commit()
	}

	const revoke = `UPDATE refresh_token_families SET revoked = TRUE, updated_at = now() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, revoke, id); err != nil {
		return fmt.Errorf("revoke family on reuse: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("revoke family on reuse: %w", err)
	}
	return ErrReuse
}

func (p *Postgres) RevokeFamily(ctx context.Context, id string) error {
	const q = `UPDATE refresh_token_families SET revoked = TRUE, updated_at = now() WHERE id = $1`
	res, err := p.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("revoke family: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RevokeAllForUser(ctx context.Context, userID string) error {
	const q = `UPDATE refresh_token_families SET revoked = TRUE, updated_at = now()
WHERE user_id = $1 AND NOT revoked`
	if _, err := p.db.ExecContext(ctx, q, userID); err != nil {
		return fmt.Errorf("revoke user families: %w", err)
	}
	return nil
}

func (p *Postgres) Prune(ctx context.Context, maxAge time.Duration) error {
	const q = `DELETE FROM refresh_token_families
WHERE revoked AND updated_at < now() - $1::interval`
	interval := fmt.Sprintf("%d milliseconds", maxAge.Milliseconds())
	if _, err := p.db.ExecContext(ctx, q, interval); err != nil {
		return fmt.Errorf("prune families: %w", err)
	}
	return nil
}
