package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTokenBlacklist(t *testing.T) {
	b := NewInMemoryTokenBlacklist()
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Revoke(ctx, "jti-1", time.Hour))
	require.NoError(t, b.Revoke(ctx, "jti-expired", 0))
	require.NoError(t, b.Revoke(ctx, "jti-short", time.Millisecond))

	revoked, err := b.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = b.IsRevoked(ctx, "jti-expired")
	assert.False(t, revoked)

	assert.Eventually(t, func() bool {
		revoked, _ := b.IsRevoked(ctx, "jti-short")
		return !revoked
	}, time.Second, 5*time.Millisecond)
}

func TestRedisTokenBlacklist(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := NewRedisTokenBlacklistWithClient(client)
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Revoke(ctx, "jti-1", time.Minute))
	require.NoError(t, b.Revoke(ctx, "jti-noop", -time.Second))

	revoked, err := b.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.False(t, mr.Exists(blacklistKeyPrefix+"jti-noop"))

	mr.FastForward(2 * time.Minute)
	revoked, err = b.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	mr.Close()
	_, err = b.IsRevoked(ctx, "jti-1")
	assert.Error(t, err)
}
