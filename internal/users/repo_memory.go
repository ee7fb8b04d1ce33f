package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

type resetToken struct {
	hash      string
	expiresAt time.Time
}

type MemoryRepo struct {
	mu     sync.RWMutex
	users  map[string]User
	resets map[string]resetToken
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: make(map[string]User), resets: make(map[string]resetToken)}
}

func (r *MemoryRepo) Create(ctx context.Context, user User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.findByEmailLocked(user.Email); ok {
		return ErrEmailTaken
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.findByEmailLocked(email)
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryRepo) UpsertOAuth(ctx context.Context, user User) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	existing, ok := r.findByEmailLocked(user.Email)
	if !ok {
		user.CreatedAt = now
		user.UpdatedAt = now
		r.users[user.ID] = user
		return user, nil
	}
	existing.Provider = user.Provider
	existing.ProviderUserID = user.ProviderUserID
	if user.Name != "" {
		existing.Name = user.Name
	}
	if user.Picture != "" {
		existing.Picture = user.Picture
	}
	existing.UpdatedAt = now
	r.users[existing.ID] = existing
	return existing, nil
}

func (r *MemoryRepo) SetResetToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	r.resets[userID] = resetToken{hash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (r *MemoryRepo) ConsumeResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (User, error) {
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, tok := range r.resets {
		if tok.hash != tokenHash || !tok.expiresAt.After(now) {
			continue
		}
		user := r.users[userID]
		user.PasswordHash = passwordHash
		user.UpdatedAt = now
		r.users[userID] = user
		delete(r.resets, userID)
		return user, nil
	}
	return User{}, ErrNotFound
}

func (r *MemoryRepo) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for userID, tok := range r.resets {
		if !tok.expiresAt.After(now) {
			delete(r.resets, userID)
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) findByEmailLocked(email string) (User, bool) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return User{}, false
}
