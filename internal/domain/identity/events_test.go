package identity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub(t *testing.T) {
	t.Run("delivers events in registration order", func(t *testing.T) {
		hub := NewEventHub(nil)
		var got []string
		hub.Subscribe(func(e AuthEvent) { got = append(got, "first:"+string(e.Type)) })
		hub.Subscribe(func(e AuthEvent) { got = append(got, "second:"+string(e.Type)) })

		hub.Emit(AuthEvent{Type: AuthEventSignedOut})

		assert.Equal(t, []string{"first:signed_out", "second:signed_out"}, got)
	})

	t.Run("unsubscribe stops delivery and is idempotent", func(t *testing.T) {
		hub := NewEventHub(nil)
		calls := 0
		unsubscribe := hub.Subscribe(func(AuthEvent) { calls++ })
		require.Equal(t, 1, hub.Len())

		unsubscribe()
		unsubscribe()
		hub.Emit(AuthEvent{Type: AuthEventSignedIn})

		assert.Equal(t, 0, calls)
		assert.Equal(t, 0, hub.Len())
	})

	t.Run("a panicking listener does not block others", func(t *testing.T) {
		hub := NewEventHub(nil)
		delivered := false
		hub.Subscribe(func(AuthEvent) { panic("boom") })
		hub.Subscribe(func(AuthEvent) { delivered = true })

		assert.NotPanics(t, func() { hub.Emit(AuthEvent{Type: AuthEventSignedIn}) })
		assert.True(t, delivered)
	})

	t.Run("carries the session", func(t *testing.T) {
		hub := NewEventHub(nil)
		var got *AuthSession
		hub.Subscribe(func(e AuthEvent) { got = e.Session })

		session := &AuthSession{ID: "s1", Principal: Principal{ID: uuid.New(), Email: "a@b.c"}}
		hub.Emit(AuthEvent{Type: AuthEventSignedIn, Session: session})

		assert.Same(t, session, got)
	})
}

func TestAuthSession_IsExpired(t *testing.T) {
	now := time.Now()
	assert.False(t, (&AuthSession{}).IsExpired(now))
	assert.False(t, (&AuthSession{ExpiresAt: now.Add(time.Minute)}).IsExpired(now))
	assert.True(t, (&AuthSession{ExpiresAt: now}).IsExpired(now))
	var nilSession *AuthSession
	assert.False(t, nilSession.IsExpired(now))
}
