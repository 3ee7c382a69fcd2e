package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/domain/identity"
)

// JWTIdentityProvider authenticates with self-issued access tokens
type JWTIdentityProvider struct {
	jwt       *JWTService
	store     TokenStore
	blacklist TokenBlacklist
	hub       *identity.EventHub
	logger    *zap.Logger
	now       func() time.Time
}

// NewJWTIdentityProvider creates a provider holding its token in store
func NewJWTIdentityProvider(jwtService *JWTService, store TokenStore, blacklist TokenBlacklist, logger *zap.Logger) *JWTIdentityProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JWTIdentityProvider{
		jwt:       jwtService,
		store:     store,
		blacklist: blacklist,
		hub:       identity.NewEventHub(logger),
		logger:    logger.Named("auth.jwt"),
		now:       time.Now,
	}
}

// GetSession returns the session for the stored token, or nil when no valid
// token is held. Expired and revoked tokens are dropped from the store.
func (p *JWTIdentityProvider) GetSession(ctx context.Context) (*identity.AuthSession, error) {
	token := p.store.Token()
	if token == "" {
		return nil, nil
	}

	session, err := p.verify(ctx, token)
	if errors.Is(err, ErrExpiredToken) || errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrInvalidToken) {
		p.logger.Debug("Dropping unusable stored token", zap.Error(err))
		p.store.Clear()
		return nil, nil
	}
	return session, err
}

// SignIn validates token, stores it and announces the new session.
// Signing in again as the same principal is reported as a token refresh.
func (p *JWTIdentityProvider) SignIn(ctx context.Context, token string) (*identity.AuthSession, error) {
	session, err := p.verify(ctx, token)
	if err != nil {
		return nil, err
	}

	eventType := identity.AuthEventSignedIn
	if prev := p.store.Token(); prev != "" {
		if claims, err := p.jwt.ValidateAccessToken(prev); err == nil && claims.UserID == session.Principal.ID.String() {
			eventType = identity.AuthEventTokenRefreshed
		}
	}

	p.store.SetToken(token)
	p.hub.Emit(identity.AuthEvent{Type: eventType, Session: session})
	return session, nil
}

// SignOut revokes the stored token for its remaining lifetime and clears it.
// Local state is cleared even when revocation fails.
func (p *JWTIdentityProvider) SignOut(ctx context.Context) error {
	token := p.store.Token()
	p.store.Clear()
	defer p.hub.Emit(identity.AuthEvent{Type: identity.AuthEventSignedOut})

	if token == "" {
		return nil
	}
	claims, err := p.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil
	}
	if err := p.blacklist.Revoke(ctx, claims.ID, claims.RemainingTTL(p.now())); err != nil {
		p.logger.Warn("Failed to revoke token on sign-out", zap.Error(err))
		return err
	}
	return nil
}

// Subscribe implements identity.AuthEventSource
func (p *JWTIdentityProvider) Subscribe(listener func(identity.AuthEvent)) func() {
	return p.hub.Subscribe(listener)
}

func (p *JWTIdentityProvider) verify(ctx context.Context, token string) (*identity.AuthSession, error) {
	claims, err := p.jwt.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}
	revoked, err := p.blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	principal, err := claims.Principal()
	if err != nil {
		return nil, err
	}
	return &identity.AuthSession{
		ID:          claims.ID,
		AccessToken: token,
		Principal:   principal,
		ExpiresAt:   claims.ExpiresAtTime(),
	}, nil
}

var _ identity.Authenticator = (*JWTIdentityProvider)(nil)
