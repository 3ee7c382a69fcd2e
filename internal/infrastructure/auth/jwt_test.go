package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/infrastructure/config"
)

const testSecret = "test-secret-key-that-is-at-least-32-bytes"

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                testSecret,
		AccessTokenExpiration: time.Hour,
		Issuer:                "tidyops",
	})
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newTestJWTService()
	principal := identity.Principal{ID: uuid.New(), Email: "owner@sparkle.test"}

	token, expiresAt, err := svc.GenerateAccessToken(principal)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, "tidyops", claims.Issuer)

	got, err := claims.Principal()
	require.NoError(t, err)
	assert.Equal(t, principal, got)
	assert.Equal(t, time.Hour, svc.Expiration())
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newTestJWTService()
	principal := identity.Principal{ID: uuid.New()}

	t.Run("expired", func(t *testing.T) {
		past := newTestJWTService()
		past.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
		token, _, err := past.GenerateAccessToken(principal)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := newTestJWTService()
		future.now = func() time.Time { return time.Now().Add(30 * time.Minute) }
		token, _, err := future.GenerateAccessToken(principal)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "another-secret-key-with-32-bytes-plus", AccessTokenExpiration: time.Hour, Issuer: "tidyops"})
		token, _, err := other.GenerateAccessToken(principal)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: testSecret, AccessTokenExpiration: time.Hour, Issuer: "someone-else"})
		token, _, err := other.GenerateAccessToken(principal)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing user id", func(t *testing.T) {
		claims := &Claims{RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tidyops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingUserID)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestClaims_RemainingTTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute))}}

	assert.Equal(t, 10*time.Minute, c.RemainingTTL(now))
	assert.Zero(t, c.RemainingTTL(now.Add(time.Hour)))
	assert.Zero(t, (&Claims{}).RemainingTTL(now))
	assert.True(t, (&Claims{}).ExpiresAtTime().IsZero())
}

func TestClaims_PrincipalInvalid(t *testing.T) {
	_, err := (&Claims{UserID: "nope"}).Principal()
	assert.ErrorIs(t, err, ErrInvalidClaims)
}
