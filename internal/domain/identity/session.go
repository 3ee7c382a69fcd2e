package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Principal is the authenticated user
type Principal struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// AuthSession is an authenticated session issued by an identity provider
type AuthSession struct {
	ID          string
	AccessToken string
	Principal   Principal
	ExpiresAt   time.Time
}

// IsExpired reports whether the session has expired at the given time
func (s *AuthSession) IsExpired(now time.Time) bool {
	return s != nil && !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// IdentityProvider is the remote authority for sessions.
// GetSession returns (nil, nil) when nobody is signed in.
type IdentityProvider interface {
	GetSession(ctx context.Context) (*AuthSession, error)
	SignOut(ctx context.Context) error
}

// Authenticator is an IdentityProvider that accepts credentials and reports
// state changes. SignIn validates token with the authority before storing it.
type Authenticator interface {
	IdentityProvider
	AuthEventSource
	SignIn(ctx context.Context, token string) (*AuthSession, error)
}
