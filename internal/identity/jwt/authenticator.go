// Package jwt validates access tokens issued by the platform's
// authentication service. This service never issues tokens of its own.
package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Validation errors.
var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Config contains token validation configuration.
type Config struct {
	// SecretKey is the HMAC signing secret shared with the auth service.
	SecretKey string
}

// Authenticator validates platform access tokens.
type Authenticator struct {
	secret []byte
}

// NewAuthenticator creates a new token authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	return &Authenticator{secret: []byte(cfg.SecretKey)}
}

// ValidateToken parses and verifies a bearer token, returning the subject
// user ID and username claims.
func (a *Authenticator) ValidateToken(_ context.Context, tokenString string) (string, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidToken
	}

	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return "", "", ErrInvalidToken
	}

	username, _ := claims["username"].(string)

	return userID, username, nil
}
