package users

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id, email, name, picture, password_hash, provider, provider_user_id, created_at, updated_at`

type PGRepo struct {
	DB *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Picture,
		&user.PasswordHash,
		&user.Provider,
		&user.ProviderUserID,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return user, nil
}

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, picture, password_hash, provider, provider_user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	provider := user.Provider
	if provider == "" {
		provider = ProviderPassword
	}
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Picture,
		user.PasswordHash,
		provider,
		user.ProviderUserID,
		createdAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	query := `SELECT ` + userColumns + `
FROM users
WHERE id = $1
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, userID))
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	query := `SELECT ` + userColumns + `
FROM users
WHERE lower(email) = lower($1)
LIMIT 1`
	return scanUser(r.DB.QueryRowContext(ctx, query, email))
}

func (r *PGRepo) UpsertOAuth(ctx context.Context, user User) (User, error) {
	query := `
INSERT INTO users (id, email, name, picture, provider, provider_user_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now(), now())
ON CONFLICT ((lower(email))) DO UPDATE SET
  provider = EXCLUDED.provider,
  provider_user_id = EXCLUDED.provider_user_id,
  name = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
  picture = COALESCE(NULLIF(EXCLUDED.picture, ''), users.picture),
  updated_at = now()
RETURNING ` + userColumns
	return scanUser(r.DB.QueryRowContext(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.Picture,
		user.Provider,
		user.ProviderUserID,
	))
}

func (r *PGRepo) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	const query = `
UPDATE users
SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = now()
WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, userID, tokenHash, expiresAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	query := `
UPDATE users
SET password_hash = $2, reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3
WHERE reset_token_hash = $1 AND reset_token_expires_at > $3
RETURNING ` + userColumns
	return scanUser(r.DB.QueryRowContext(ctx, query, tokenHash, passwordHash, now))
}

func (r *PGRepo) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	const query = `
UPDATE users
SET reset_token_hash = NULL, reset_token_expires_at = NULL
WHERE reset_token_hash IS NOT NULL AND reset_token_expires_at <= $1`
	res, err := r.DB.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
