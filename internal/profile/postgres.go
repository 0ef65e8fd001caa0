package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists profiles in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Read retrieves the profile for an identity id.
func (s *PostgresStore) Read(ctx context.Context, id string) (*Profile, error) {
	q := `SELECT email, username, avatar, bio, created_at FROM profiles WHERE identity_id = $1`
	var p Profile
	err := s.db.QueryRow(ctx, q, id).Scan(&p.Email, &p.Username, &p.Avatar, &p.Bio, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return &p, nil
}

// Write persists a profile record. The first writer for an identity id
// wins: a concurrent duplicate insert is dropped rather than overwriting,
// which closes the check-then-act window at the store for free.
func (s *PostgresStore) Write(ctx context.Context, id string, p *Profile) error {
	q := `
		INSERT INTO profiles (identity_id, email, username, avatar, bio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (identity_id) DO NOTHING`
	_, err := s.db.Exec(ctx, q, id, p.Email, p.Username, p.Avatar, p.Bio, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}
