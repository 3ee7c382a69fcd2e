package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/application/session"
	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/domain/tenancy"
	"github.com/tidyops/backend/internal/infrastructure/cache"
)

// Dependencies are the process-wide collaborators every workspace shares
type Dependencies struct {
	Auth             identity.IdentityProvider
	Profiles         tenancy.ProfileRepository
	Memberships      tenancy.MembershipRepository
	Switcher         tenancy.CompanySwitcher
	Appointments     scheduling.AppointmentRepository
	Clients          crm.ClientRepository
	AppointmentStore *cache.Store[scheduling.Appointment]
	ClientStore      *cache.Store[crm.Client]
	Hints            session.HintStore
	Publisher        ChangePublisher
	Feed             ChangeFeed
}

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger
func WithManagerLogger(logger *zap.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerClock sets the time source shared by every workspace
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithBootstrapTimeout bounds session resolution of each new workspace
func WithBootstrapTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.bootstrapTimeout = d
		}
	}
}

// WithFetchTimeout bounds each cache miss fetch
func WithFetchTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.fetchTimeout = d
		}
	}
}

// Manager owns the current workspace and rebuilds it on company switch and sign-out
type Manager struct {
	deps             Dependencies
	logger           *zap.Logger
	now              func() time.Time
	bootstrapTimeout time.Duration
	fetchTimeout     time.Duration

	reloadMu    sync.Mutex
	mu          sync.RWMutex
	current     *Workspace
	generation  uint64
	unsubscribe func()
}

// NewManager creates a manager; call Start to build the first workspace
func NewManager(deps Dependencies, opts ...ManagerOption) *Manager {
	m := &Manager{
		deps:             deps,
		logger:           zap.NewNop(),
		now:              time.Now,
		bootstrapTimeout: 15 * time.Second,
		fetchTimeout:     15 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start follows sign-outs and builds the first workspace
func (m *Manager) Start(ctx context.Context) error {
	if source, ok := m.deps.Auth.(identity.AuthEventSource); ok {
		unsubscribe := source.Subscribe(m.handleAuthEvent)
		m.mu.Lock()
		m.unsubscribe = unsubscribe
		m.mu.Unlock()
	}
	return m.Reload(ctx)
}

// Current returns the live workspace, or nil before Start
func (m *Manager) Current() *Workspace {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Generation returns how many workspaces have been built
func (m *Manager) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

// Reload builds and initializes a new workspace, swaps it in and closes the old one
func (m *Manager) Reload(ctx context.Context) error {
	m.reloadMu.Lock()
	defer m.reloadMu.Unlock()

	start := m.now()
	ws := m.build()

	bctx, cancel := context.WithTimeout(ctx, m.bootstrapTimeout)
	snap := ws.Resolver.Initialize(bctx)
	cancel()

	m.mu.Lock()
	m.generation++
	ws.Generation = m.generation
	old := m.current
	m.current = ws
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}

	m.logger.Info("Workspace ready",
		zap.Uint64("generation", ws.Generation),
		zap.String("status", string(snap.Status)),
		zap.Bool("authenticated", snap.IsAuthenticated),
		zap.String("company_id", snap.CompanyID().String()),
		zap.Duration("took", m.now().Sub(start)))
	return nil
}

// Close stops following auth events and closes the live workspace
func (m *Manager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	current := m.current
	m.current = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if current != nil {
		current.Close()
	}
}

func (m *Manager) handleAuthEvent(event identity.AuthEvent) {
	if event.Type != identity.AuthEventSignedOut {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.bootstrapTimeout)
	defer cancel()
	if err := m.Reload(ctx); err != nil {
		m.logger.Error("Failed to rebuild workspace after sign-out", zap.Error(err))
	}
}

func (m *Manager) build() *Workspace {
	resolver := session.NewResolver(
		m.deps.Auth,
		m.deps.Profiles,
		m.deps.Memberships,
		m.deps.Switcher,
		session.WithLogger(m.logger.Named("session")),
		session.WithClock(m.now),
		session.WithHintStore(m.deps.Hints),
		session.WithReloadHook(m.Reload),
		session.WithTimeout(m.bootstrapTimeout),
	)

	sc := &scope{
		tenant:       session.CompanyID(resolver),
		user:         session.UserID(resolver),
		publisher:    m.deps.Publisher,
		logger:       m.logger,
		now:          m.now,
		fetchTimeout: m.fetchTimeout,
	}
	ws := &Workspace{
		Resolver:     resolver,
		Appointments: newAppointmentService(sc, m.deps.Appointments, m.deps.Clients, m.deps.AppointmentStore),
		Clients:      newClientService(sc, m.deps.Clients, m.deps.ClientStore),
		scope:        sc,
	}
	ws.Appointments.clientsChanged = func(ctx context.Context, tenantID uuid.UUID) {
		ws.Clients.afterWrite(ctx, tenantID)
	}
	if m.deps.Feed != nil {
		ws.unsubscribe = m.deps.Feed.OnChange(ws.remoteChange)
	}
	return ws
}
