package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/stayreal/companion/internal/db"
)

// PreferenceRepository stores opaque JSON documents by key.
type PreferenceRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// PostgresPreferenceStore persists preference documents to PostgreSQL.
type PostgresPreferenceStore struct {
	pool db.Pool
}

// NewPostgresPreferenceStore constructs a preference store backed by PostgreSQL.
func NewPostgresPreferenceStore(pool db.Pool) *PostgresPreferenceStore {
	return &PostgresPreferenceStore{pool: pool}
}

// Set stores or replaces the document under key.
func (s *PostgresPreferenceStore) Set(ctx context.Context, key string, value []byte) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO preferences (key, value, updated_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (key)
        DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
    `, key, string(value))
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}

	return nil
}

// Get loads the document stored under key.
func (s *PostgresPreferenceStore) Get(ctx context.Context, key string) ([]byte, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var value string
	err = conn.QueryRow(ctx, `
        SELECT value
        FROM preferences
        WHERE key = $1
    `, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select preference: %w", err)
	}

	return []byte(value), nil
}

var _ PreferenceRepository = (*PostgresPreferenceStore)(nil)
