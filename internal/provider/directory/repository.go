package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository stores directory accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, display_name, avatar_url, created_at, updated_at`

// Create inserts a new account. Sets ID, CreatedAt, UpdatedAt on a.
func (r *PostgresRepository) Create(ctx context.Context, a *Account) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	q := `
		INSERT INTO accounts (id, email, password_hash, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, q,
		a.ID, a.Email, a.PasswordHash, a.DisplayName, a.AvatarURL, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByEmail retrieves an account by email address.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return r.scanOne(ctx, q, email)
}

// GetByID retrieves an account by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return r.scanOne(ctx, q, id)
}

// GetByLink retrieves the account linked to a third-party identity.
func (r *PostgresRepository) GetByLink(ctx context.Context, providerName, subjectID string) (*Account, error) {
	q := `
		SELECT a.id, a.email, a.password_hash, a.display_name, a.avatar_url, a.created_at, a.updated_at
		FROM accounts a
		JOIN account_links l ON l.account_id = a.id
		WHERE l.provider = $1 AND l.subject_id = $2`
	return r.scanOne(ctx, q, providerName, subjectID)
}

// Link records a third-party identity link. Duplicate links are ignored.
func (r *PostgresRepository) Link(ctx context.Context, accountID uuid.UUID, providerName, subjectID string) error {
	q := `
		INSERT INTO account_links (id, account_id, provider, subject_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (provider, subject_id) DO NOTHING`
	if _, err := r.db.Exec(ctx, q, uuid.New(), accountID, providerName, subjectID, time.Now().UTC()); err != nil {
		return fmt.Errorf("link account: %w", err)
	}
	return nil
}

// SetDisplayName updates an account's display name. An empty name clears it.
func (r *PostgresRepository) SetDisplayName(ctx context.Context, id uuid.UUID, name string) error {
	q := `UPDATE accounts SET display_name = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, name, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set display name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPasswordHash replaces an account's password hash.
func (r *PostgresRepository) SetPasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	q := `UPDATE accounts SET password_hash = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.db.Exec(ctx, q, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateResetToken persists a single-use password reset token.
func (r *PostgresRepository) CreateResetToken(ctx context.Context, accountID uuid.UUID, token string, expires time.Time) error {
	q := `INSERT INTO reset_tokens (token, account_id, expires_at) VALUES ($1, $2, $3)`
	if _, err := r.db.Exec(ctx, q, token, accountID, expires); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

// ConsumeResetToken marks an unexpired, unused token as used and returns
// its account. Returns ErrNotFound for unknown, expired, or spent tokens.
func (r *PostgresRepository) ConsumeResetToken(ctx context.Context, token string) (*Account, error) {
	q := `
		UPDATE reset_tokens
		SET used_at = now()
		WHERE token = $1 AND used_at IS NULL AND expires_at > now()
		RETURNING account_id`
	var accountID uuid.UUID
	if err := r.db.QueryRow(ctx, q, token).Scan(&accountID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("consume reset token: %w", err)
	}
	return r.GetByID(ctx, accountID)
}

func (r *PostgresRepository) scanOne(ctx context.Context, q string, args ...any) (*Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, q, args...).Scan(
		&a.ID, &a.Email, &a.PasswordHash, &a.DisplayName, &a.AvatarURL, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query account: %w", err)
	}
	return &a, nil
}
