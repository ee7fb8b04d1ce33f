package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"intellidoc-backend/internal/shared/auth"
	sharedmail "intellidoc-backend/internal/shared/mail"
	"intellidoc-backend/internal/shared/telemetry"
	"intellidoc-backend/internal/shared/util"
)

const (
	BcryptCost            = 10
	ResetTokenTTL         = 15 * time.Minute
	MinRegisterPassword   = 6
	MinResetPassword      = 8
	MaxPasswordBytes      = 72
	resetTokenBytes       = 32
	ForgotPasswordMessage = "If this email exists in our system, a password reset link has been sent."
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

// Signer issues session tokens.
type Signer interface {
	Sign(claims auth.Claims) (string, error)
}

type Service struct {
	Repo     Repo
	Tokens   Signer
	Mailer   sharedmail.Mailer
	ResetURL string
	Now      func() time.Time

	// dummyHash keeps login timing uniform for unknown emails.
	dummyHash []byte
}

func NewService(repo Repo, tokens Signer, mailer sharedmail.Mailer, resetURL string) *Service {
	if mailer == nil {
		mailer = sharedmail.Log{}
	}
	dummy, _ := bcrypt.GenerateFromPassword([]byte("intellidoc-placeholder"), BcryptCost)
	return &Service{Repo: repo, Tokens: tokens, Mailer: mailer, ResetURL: resetURL, Now: time.Now, dummyHash: dummy}
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

// Register creates a password account.
func (s *Service) Register(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if password == "" {
		return User{}, invalidInput("Email and Password required")
	}
	if err := checkPassword(password, MinRegisterPassword); err != nil {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Provider:     ProviderPassword,
		CreatedAt:    s.now(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return User{}, err
	}
	user.UpdatedAt = user.CreatedAt
	telemetry.Info("user.registered", map[string]any{"user_id": user.ID})
	return user, nil
}

// Login verifies a password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", User{}, err
	}
	if password == "" {
		return "", User{}, invalidInput("Password is required")
	}

	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return "", User{}, ErrInvalidCredentials
		}
		return "", User{}, err
	}
	if user.PasswordHash == "" {
		return "", User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", User{}, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", User{}, err
	}
	return token, user, nil
}

// IssueToken signs a session token for the user.
func (s *Service) IssueToken(user User) (string, error) {
	if s.Tokens == nil {
		return "", errors.New("token signer not configured")
	}
	return s.Tokens.Sign(auth.Claims{UserID: user.ID, Email: user.Email, Name: user.Name})
}

// ForgotPassword stores a reset token for a known email and mails the link.
// Unknown emails and mail failures are indistinguishable to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	if err := s.Repo.SetResetToken(ctx, user.ID, util.SHA256Hex(token), s.now().Add(ResetTokenTTL)); err != nil {
		return err
	}

	link, err := resetLink(s.ResetURL, token)
	if err != nil {
		return err
	}
	msg := sharedmail.Message{
		To:      user.Email,
		Subject: "Password Reset Request",
		Body:    "You requested a password reset. Use this link to reset your password:\n\n" + link + "\n\nThis link expires in 15 minutes.",
	}
	if err := s.Mailer.Send(ctx, msg); err != nil {
		telemetry.Error("user.reset_mail_failed", map[string]any{"user_id": user.ID, "error": err.Error()})
		return nil
	}
	telemetry.Info("user.reset_requested", map[string]any{"user_id": user.ID})
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	if token == "" || newPassword == "" {
		return invalidInput("Token and new password required")
	}
	if err := checkPassword(newPassword, MinResetPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), BcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user, err := s.Repo.ConsumeResetToken(ctx, util.SHA256Hex(token), string(hash), s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	telemetry.Info("user.password_reset", map[string]any{"user_id": user.ID})
	return nil
}

// UpsertFromGoogle links a Google identity to the account with the same email.
func (s *Service) UpsertFromGoogle(ctx context.Context, profile GoogleProfile) (User, error) {
	if strings.TrimSpace(profile.Subject) == "" {
		return User{}, invalidInput("google subject is required")
	}
	email, err := normalizeEmail(profile.Email)
	if err != nil {
		return User{}, err
	}
	return s.Repo.UpsertOAuth(ctx, User{
		ID:             uuid.NewString(),
		Email:          email,
		Name:           strings.TrimSpace(profile.Name),
		Picture:        strings.TrimSpace(profile.Picture),
		Provider:       ProviderGoogle,
		ProviderUserID: profile.Subject,
	})
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, invalidInput("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}

// PurgeExpiredResetTokens clears reset tokens past their expiry.
func (s *Service) PurgeExpiredResetTokens(ctx context.Context) (int64, error) {
	n, err := s.Repo.PurgeExpiredResetTokens(ctx, s.now())
	if err != nil {
		telemetry.Error("user.reset_purge_failed", map[string]any{"error": err.Error()})
		return 0, err
	}
	if n > 0 {
		telemetry.Info("user.reset_purged", map[string]any{"count": n})
	}
	return n, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", invalidInput("Email is required")
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
		return "", invalidInput("Please provide a valid email")
	}
	return strings.ToLower(addr.Address), nil
}

func checkPassword(password string, minLen int) error {
	if len([]rune(password)) < minLen {
		return invalidInput(fmt.Sprintf("Password must be at least %d characters", minLen))
	}
	if len(password) > MaxPasswordBytes {
		return invalidInput(fmt.Sprintf("Password must be at most %d bytes", MaxPasswordBytes))
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return invalidInput("Password must contain at least one lowercase letter, one uppercase letter, and one number")
	}
	return nil
}

func resetLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || base == "" {
		return "", fmt.Errorf("invalid reset url %q", base)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
