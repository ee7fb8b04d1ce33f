package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("user already exists")
)

type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// UpsertOAuth links a provider identity to the account owning the same email,
	// creating the account when none exists.
	UpsertOAuth(ctx context.Context, user User) (User, error)
	SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// ConsumeResetToken swaps the password for the holder of an unexpired token and clears it.
	ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error)
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
