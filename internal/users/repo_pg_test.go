package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

var userRowColumns = []string{"id", "email", "name", "picture", "password_hash", "provider", "provider_user_id", "created_at", "updated_at"}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return &PGRepo{DB: db}, mock, func() { db.Close() }
}

func TestPGRepoCreate(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO users").
		WithArgs("u1", "ada@example.com", "", "", "hash", ProviderPassword, "", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), User{ID: "u1", Email: "ada@example.com", PasswordHash: "hash", CreatedAt: created})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoCreateDuplicateEmail(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value"})

	err := repo.Create(context.Background(), User{ID: "u1", Email: "ada@example.com"})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestPGRepoGetByEmail(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM users WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "ada@example.com", "Ada", "", "hash", "password", "", now, now))

	user, err := repo.GetByEmail(context.Background(), "ada@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if user.ID != "u1" || user.PasswordHash != "hash" || user.Name != "Ada" {
		t.Fatalf("unexpected user %+v", user)
	}

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoUpsertOAuth(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	now := time.Now().UTC()

	mock.ExpectQuery(`ON CONFLICT \(\(lower\(email\)\)\) DO UPDATE`).
		WithArgs("new-id", "ada@example.com", "Ada", "", ProviderGoogle, "g-1").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("existing", "ada@example.com", "Ada", "", "hash", "google", "g-1", now, now))

	user, err := repo.UpsertOAuth(context.Background(), User{
		ID: "new-id", Email: "ada@example.com", Name: "Ada", Provider: ProviderGoogle, ProviderUserID: "g-1",
	})
	if err != nil {
		t.Fatalf("UpsertOAuth: %v", err)
	}
	if user.ID != "existing" {
		t.Fatalf("expected linked id, got %s", user.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGRepoResetTokens(t *testing.T) {
	repo, mock, done := newMockRepo(t)
	defer done()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.Add(ResetTokenTTL)

	mock.ExpectExec("UPDATE users SET reset_token_hash = \\$2").
		WithArgs("u1", "tokhash", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.SetResetToken(ctx, "u1", "tokhash", expires); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	mock.ExpectExec("UPDATE users SET reset_token_hash = \\$2").
		WithArgs("ghost", "tokhash", expires).
		WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.SetResetToken(ctx, "ghost", "tokhash", expires); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectQuery(`WHERE reset_token_hash = \$1 AND reset_token_expires_at > \$3`).
		WithArgs("tokhash", "newhash", now).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow("u1", "ada@example.com", "", "", "newhash", "password", "", now, now))
	user, err := repo.ConsumeResetToken(ctx, "tokhash", "newhash", now)
	if err != nil || user.PasswordHash != "newhash" {
		t.Fatalf("ConsumeResetToken: %+v %v", user, err)
	}

	mock.ExpectQuery(`WHERE reset_token_hash = \$1`).
		WithArgs("stale", "newhash", now).
		WillReturnError(sql.ErrNoRows)
	if _, err := repo.ConsumeResetToken(ctx, "stale", "newhash", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec(`reset_token_expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	n, err := repo.PurgeExpiredResetTokens(ctx, now)
	if err != nil || n != 3 {
		t.Fatalf("PurgeExpiredResetTokens: %d %v", n, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
