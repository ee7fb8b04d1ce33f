package middleware

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func expiredAt(ts time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(ts.Add(-time.Hour)),
		ExpiresAt: jwt.NewNumericDate(ts),
	}
}
