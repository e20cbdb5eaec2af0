package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// PostgresSchema creates the password_history table and its user index.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS password_history (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_password_history_user_id ON password_history (user_id);
`

// Postgres is a Store backed by a password_history table.
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
		return fmt.Errorf("create password_history schema: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, userID, passwordHash string) error {
	const q = `INSERT INTO password_history (id, user_id, password_hash) VALUES ($1, $2, $3)`
	if _, err := p.db.ExecContext(ctx, q, uuid.NewString(), userID, passwordHash); err != nil {
		return fmt.Errorf("append password history: %w", err)
	}
	return nil
}

func (p *Postgres) RecentHashes(ctx context.Context, userID string, n int) ([]string, error) {
	const q = `SELECT password_hash FROM password_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
	var hashes []string
	if err := p.db.SelectContext(ctx, &hashes, q, userID, n); err != nil {
		return nil, fmt.Errorf("load password history: %w", err)
	}
	return hashes, nil
}

func (p *Postgres) Prune(ctx context.Context, userID string, keep int) error {
	const q = `
DELETE FROM password_history
WHERE user_id = $1
  AND id NOT IN (
	SELECT id FROM password_history
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
  )`
	if _, err := p.db.ExecContext(ctx, q, userID, keep); err != nil {
		return fmt.Errorf("prune password history: %w", err)
	}
	return nil
}
