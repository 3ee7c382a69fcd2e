package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/infrastructure/config"
)

func TestRedisChangeNotifier_PubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	n := NewRedisChangeNotifierWithClient(client, WithChannel("test:changes"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ChangeMessage, 1)
	done := make(chan error, 1)
	go func() {
		done <- n.Subscribe(ctx, func(msg ChangeMessage) { received <- msg })
	}()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("test:changes")["test:changes"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	tenant := uuid.New()
	require.NoError(t, n.Publish(ctx, ChangeMessage{TenantID: tenant, Entity: EntityClients, Origin: "a"}))

	select {
	case msg := <-received:
		assert.Equal(t, tenant, msg.TenantID)
		assert.Equal(t, EntityClients, msg.Entity)
		assert.Equal(t, "a", msg.Origin)
		assert.NotZero(t, msg.Timestamp)
	case <-time.After(2 * time.Second):
		t.Fatal("change message not delivered")
	}

	assert.Error(t, n.Subscribe(ctx, func(ChangeMessage) {}), "second subscription is rejected")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.NoError(t, n.Close())
}

func TestNotifierFactory(t *testing.T) {
	t.Run("uses Redis when reachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		port, err := strconv.Atoi(mr.Port())
		require.NoError(t, err)

		n, err := NewNotifierFactory(config.RedisConfig{Host: mr.Host(), Port: port}).CreateNotifier()
		require.NoError(t, err)
		defer n.Close()
		assert.IsType(t, &RedisChangeNotifier{}, n)
	})

	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("falls back to the local notifier", func(t *testing.T) {
		n, err := NewNotifierFactory(unreachable).CreateNotifier()
		require.NoError(t, err)
		defer n.Close()
		assert.IsType(t, &LocalChangeNotifier{}, n)
	})

	t.Run("fails when fallback is disabled", func(t *testing.T) {
		_, err := NewNotifierFactory(unreachable, WithInMemoryFallback(false)).CreateNotifier()
		assert.Error(t, err)
	})
}
