package users

import "time"

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Picture        string    `json:"picture"`
	PasswordHash   string    `json:"-"`
	Provider       string    `json:"provider"`
	ProviderUserID string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// GoogleProfile is the subset of the Google userinfo payload needed to link an account.
type GoogleProfile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}
