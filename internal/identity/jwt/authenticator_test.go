package jwt

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateToken(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub":      "user-1",
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	userID, username, err := auth.ValidateToken(context.Background(), tokenString)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "alice", username)
}

func TestValidateToken_Expired(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, _, err := auth.ValidateToken(context.Background(), tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, _, err := auth.ValidateToken(context.Background(), tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_MissingExpiry(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub": "user-1",
	})

	_, _, err := auth.ValidateToken(context.Background(), tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_MissingSubject(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, _, err := auth.ValidateToken(context.Background(), tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Garbage(t *testing.T) {
	auth := NewAuthenticator(Config{SecretKey: testSecret})

	_, _, err := auth.ValidateToken(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
