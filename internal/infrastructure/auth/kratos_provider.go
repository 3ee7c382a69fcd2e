package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	kratos "github.com/ory/kratos-client-go"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/infrastructure/config"
)

// Kratos errors
var (
	ErrKratosUnavailable = errors.New("identity service unavailable")
	ErrSessionInactive   = errors.New("session is not active")
)

// KratosIdentityProvider authenticates with Ory Kratos session tokens
type KratosIdentityProvider struct {
	client  *kratos.APIClient
	store   TokenStore
	hub     *identity.EventHub
	logger  *zap.Logger
	timeout time.Duration
}

// NewKratosIdentityProvider creates a provider against the Kratos public API
func NewKratosIdentityProvider(cfg config.AuthConfig, store TokenStore, logger *zap.Logger) *KratosIdentityProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{{URL: cfg.KratosURL}}
	configuration.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	return &KratosIdentityProvider{
		client:  kratos.NewAPIClient(configuration),
		store:   store,
		hub:     identity.NewEventHub(logger),
		logger:  logger.Named("auth.kratos"),
		timeout: cfg.Timeout,
	}
}

// GetSession resolves the stored session token with Kratos. A token Kratos
// rejects is dropped and reported as signed out.
func (p *KratosIdentityProvider) GetSession(ctx context.Context) (*identity.AuthSession, error) {
	token := p.store.Token()
	if token == "" {
		return nil, nil
	}
	session, err := p.whoami(ctx, token)
	if errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrSessionInactive) {
		p.store.Clear()
		return nil, nil
	}
	return session, err
}

// SignIn validates a session token with Kratos and stores it
func (p *KratosIdentityProvider) SignIn(ctx context.Context, token string) (*identity.AuthSession, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	session, err := p.whoami(ctx, token)
	if err != nil {
		return nil, err
	}
	p.store.SetToken(token)
	p.hub.Emit(identity.AuthEvent{Type: identity.AuthEventSignedIn, Session: session})
	return session, nil
}

// SignOut revokes the session at Kratos. Local state is cleared regardless.
func (p *KratosIdentityProvider) SignOut(ctx context.Context) error {
	token := p.store.Token()
	p.store.Clear()
	defer p.hub.Emit(identity.AuthEvent{Type: identity.AuthEventSignedOut})

	if token == "" {
		return nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*kratos.NewPerformNativeLogoutBody(token)).
		Execute()
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusBadRequest {
			// already revoked
			return nil
		}
		p.logger.Warn("Kratos logout failed", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrKratosUnavailable, err)
	}
	return nil
}

// Subscribe implements identity.AuthEventSource
func (p *KratosIdentityProvider) Subscribe(listener func(identity.AuthEvent)) func() {
	return p.hub.Subscribe(listener)
}

func (p *KratosIdentityProvider) whoami(ctx context.Context, token string) (*identity.AuthSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	session, resp, err := p.client.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				return nil, ErrInvalidToken
			}
			return nil, fmt.Errorf("%w: kratos returned status %d", ErrKratosUnavailable, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %w", ErrKratosUnavailable, err)
	}
	if session.Active != nil && !*session.Active {
		return nil, ErrSessionInactive
	}
	if session.Identity == nil {
		return nil, ErrInvalidClaims
	}

	userID, err := uuid.Parse(session.Identity.Id)
	if err != nil {
		return nil, ErrInvalidClaims
	}

	out := &identity.AuthSession{
		ID:          session.Id,
		AccessToken: token,
		Principal:   identity.Principal{ID: userID, Email: traitString(session.Identity.Traits, "email")},
	}
	if session.ExpiresAt != nil {
		out.ExpiresAt = *session.ExpiresAt
	}
	return out, nil
}

func (p *KratosIdentityProvider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.timeout)
}

func traitString(traits any, key string) string {
	m, ok := traits.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

var _ identity.Authenticator = (*KratosIdentityProvider)(nil)
