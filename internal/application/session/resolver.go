package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/domain/tenancy"
	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

const defaultTimeout = 15 * time.Second

// ReloadFunc rebuilds everything scoped to the session after a company switch
type ReloadFunc func(ctx context.Context) error

// Option configures a Resolver
type Option func(*Resolver)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the time source used for subscription status
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithHintStore persists the session hint through store
func WithHintStore(store HintStore) Option {
	return func(r *Resolver) {
		r.hints = store
	}
}

// WithReloadHook is called after a successful company switch
func WithReloadHook(fn ReloadFunc) Option {
	return func(r *Resolver) {
		r.reload = fn
	}
}

// WithTimeout bounds each resolution triggered by an auth event
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// Resolver owns the session context of one workspace
type Resolver struct {
	provider    identity.IdentityProvider
	profiles    tenancy.ProfileRepository
	memberships tenancy.MembershipRepository
	switcher    tenancy.CompanySwitcher
	hints       HintStore
	reload      ReloadFunc
	logger      *zap.Logger
	now         func() time.Time
	timeout     time.Duration

	mu          sync.Mutex
	snap        Snapshot
	started     bool
	closed      bool
	gen         uint64
	version     uint64
	listeners   map[uint64]func(Snapshot)
	nextID      uint64
	unsubscribe func()

	delivering bool
	delivered  uint64

	loaded     chan struct{}
	loadedOnce sync.Once
}

// NewResolver creates a resolver in the uninitialized state
func NewResolver(
	provider identity.IdentityProvider,
	profiles tenancy.ProfileRepository,
	memberships tenancy.MembershipRepository,
	switcher tenancy.CompanySwitcher,
	opts ...Option,
) *Resolver {
	r := &Resolver{
		provider:    provider,
		profiles:    profiles,
		memberships: memberships,
		switcher:    switcher,
		logger:      zap.NewNop(),
		now:         time.Now,
		timeout:     defaultTimeout,
		snap:        Snapshot{Status: StatusUninitialized},
		listeners:   make(map[uint64]func(Snapshot)),
		loaded:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the current session context
func (r *Resolver) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Status returns the bootstrap state
func (r *Resolver) Status() Status {
	return r.Snapshot().Status
}

// Loaded is closed once the platform context has loaded, whatever the outcome
func (r *Resolver) Loaded() <-chan struct{} {
	return r.loaded
}

// Subscribe registers a listener called after changes. A listener never
// sees a snapshot older than one it has already seen.
func (r *Resolver) Subscribe(listener func(Snapshot)) (unsubscribe func()) {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = listener
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// Initialize bootstraps the session context. Only the first call does any
// work; later calls wait for it and return the resulting snapshot. Failures
// are logged and absorbed: the resolver always ends with the platform context
// loaded, unauthenticated if nothing better could be resolved.
func (r *Resolver) Initialize(ctx context.Context) Snapshot {
	r.mu.Lock()
	if r.started || r.closed {
		r.mu.Unlock()
		select {
		case <-r.loaded:
		case <-ctx.Done():
		}
		return r.Snapshot()
	}
	r.started = true
	r.gen++
	gen := r.gen
	r.snap.Status = StatusResolving
	r.snap.IsLoading = true
	r.publishAndUnlock()

	ctx, span := telemetry.StartServiceSpan(ctx, "session", "initialize")
	defer span.End()
	defer r.markLoaded()

	if hint := r.loadHint(ctx); hint != nil {
		r.update(gen, func(s *Snapshot) { s.Hint = hint })
	}

	r.subscribeEvents()

	sess, err := r.provider.GetSession(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		r.logger.Warn("Session lookup failed, continuing unauthenticated", zap.Error(err))
		r.settle(ctx, gen, Snapshot{Status: StatusError})
		return r.Snapshot()
	}
	if sess == nil {
		r.settle(ctx, gen, Snapshot{Status: StatusReady})
		return r.Snapshot()
	}

	next, err := r.resolve(ctx, sess.Principal)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	r.settle(ctx, gen, next)
	return r.Snapshot()
}

// SwitchCompany makes companyID the active company. The company must be one
// of the user's memberships. On success the reload hook rebuilds the
// session-scoped state; without a hook the context is re-resolved in place.
func (r *Resolver) SwitchCompany(ctx context.Context, companyID uuid.UUID) error {
	snap := r.Snapshot()
	if !snap.IsAuthenticated || snap.User == nil {
		return shared.ErrUnauthorized
	}
	if !snap.Memberships.Contains(companyID) {
		return shared.ErrUnknownCompany
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "session", "switch_company",
		telemetry.WithAttribute(telemetry.SpanAttrCompanyID, companyID.String()))
	defer span.End()

	if err := r.switcher.SwitchActiveCompany(ctx, snap.User.ID, companyID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	r.saveHint(ctx, Hint{ActiveCompanyID: &companyID, IsAuthenticated: true})

	r.logger.Info("Switched active company",
		zap.String("user_id", snap.User.ID.String()),
		zap.String("company_id", companyID.String()))

	if r.reload != nil {
		return r.reload(ctx)
	}
	r.refresh(ctx, snap.User)
	return nil
}

// Logout revokes the remote session. Local state and the persisted hint are
// cleared whether or not the revocation succeeds; its error is returned.
func (r *Resolver) Logout(ctx context.Context) error {
	err := r.provider.SignOut(ctx)
	if err != nil {
		r.logger.Warn("Remote sign-out failed, clearing local session anyway", zap.Error(err))
	}
	r.clear()
	if r.hints != nil {
		if cerr := r.hints.Clear(ctx); cerr != nil {
			r.logger.Warn("Failed to clear session hint", zap.Error(cerr))
		}
	}
	return err
}

// Close stops following auth events and detaches listeners
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.gen++
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.listeners = make(map[uint64]func(Snapshot))
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.markLoaded()
}

func (r *Resolver) subscribeEvents() {
	source, ok := r.provider.(identity.AuthEventSource)
	if !ok {
		return
	}
	unsubscribe := source.Subscribe(r.handleEvent)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		unsubscribe()
		return
	}
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
}

func (r *Resolver) handleEvent(event identity.AuthEvent) {
	switch event.Type {
	case identity.AuthEventSignedOut:
		r.logger.Info("Signed out, clearing session context")
		r.clear()
	case identity.AuthEventSignedIn, identity.AuthEventTokenRefreshed:
		if event.Session == nil {
			return
		}
		current := r.Snapshot()
		if event.Type == identity.AuthEventTokenRefreshed && current.UserID() == event.Session.Principal.ID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		principal := event.Session.Principal
		r.refresh(ctx, &principal)
	}
}

// refresh re-resolves the context for principal and applies it
func (r *Resolver) refresh(ctx context.Context, principal *identity.Principal) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	gen := r.gen
	r.snap.IsLoading = true
	r.publishAndUnlock()

	next, _ := r.resolve(ctx, *principal)
	r.settle(ctx, gen, next)
}

// resolve fetches the profile and memberships in parallel and derives the
// active company. A failure yields an authenticated but empty context.
func (r *Resolver) resolve(ctx context.Context, principal identity.Principal) (Snapshot, error) {
	var (
		profile     *tenancy.Profile
		memberships tenancy.Memberships
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := r.profiles.FindByUserID(gctx, principal.ID)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		profile = p
		return err
	})
	g.Go(func() error {
		ms, err := r.memberships.FindByUserID(gctx, principal.ID)
		memberships = ms
		return err
	})

	user := principal
	if err := g.Wait(); err != nil {
		r.logger.Error("Failed to resolve session context",
			zap.String("user_id", principal.ID.String()),
			zap.Error(err))
		return Snapshot{Status: StatusError, User: &user, IsAuthenticated: true}, err
	}

	next := Snapshot{
		Status:          StatusReady,
		User:            &user,
		IsAuthenticated: true,
		Memberships:     memberships,
		IsPlatformAdmin: profile != nil && profile.IsPlatformAdmin,
	}

	preferred := profile.ResolveActiveCompanyID()
	next.Company = tenancy.ResolveCompany(memberships, preferred, r.now())
	if next.Company != nil {
		id := next.Company.ID
		next.ActiveCompanyID = &id
	} else if preferred != nil {
		r.logger.Warn("Active company is not among the user's memberships",
			zap.String("user_id", principal.ID.String()),
			zap.String("company_id", preferred.String()))
	}
	return next, nil
}

// settle applies the outcome of a resolution started at gen and persists the hint
func (r *Resolver) settle(ctx context.Context, gen uint64, next Snapshot) {
	next.IsLoading = false
	next.PlatformContextLoaded = true
	if next.Memberships == nil {
		next.Memberships = tenancy.Memberships{}
	}
	hint := Hint{ActiveCompanyID: next.ActiveCompanyID, IsAuthenticated: next.IsAuthenticated}
	next.Hint = &hint

	if !r.update(gen, func(s *Snapshot) { *s = next }) {
		r.logger.Debug("Discarded superseded session resolution")
		return
	}
	r.saveHint(ctx, hint)
}

// clear drops all session state in one step and supersedes any resolution in flight
func (r *Resolver) clear() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.gen++
	r.snap = Snapshot{
		Status:                StatusReady,
		Memberships:           tenancy.Memberships{},
		PlatformContextLoaded: true,
	}
	r.publishAndUnlock()
	r.markLoaded()
}

// update mutates the snapshot if gen is still current
func (r *Resolver) update(gen uint64, fn func(*Snapshot)) bool {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return false
	}
	fn(&r.snap)
	r.publishAndUnlock()
	return true
}

func (r *Resolver) markLoaded() {
	r.loadedOnce.Do(func() {
		r.mu.Lock()
		if !r.closed && !r.snap.PlatformContextLoaded {
			r.snap.PlatformContextLoaded = true
			r.snap.IsLoading = false
			if r.snap.Status == StatusResolving {
				r.snap.Status = StatusError
			}
			r.publishAndUnlock()
		} else {
			r.mu.Unlock()
		}
		close(r.loaded)
	})
}

func (r *Resolver) loadHint(ctx context.Context) *Hint {
	if r.hints == nil {
		return nil
	}
	hint, err := r.hints.Load(ctx)
	if err != nil {
		r.logger.Warn("Failed to load session hint", zap.Error(err))
		return nil
	}
	return hint
}

func (r *Resolver) saveHint(ctx context.Context, hint Hint) {
	if r.hints == nil {
		return
	}
	if err := r.hints.Save(ctx, hint); err != nil {
		r.logger.Warn("Failed to persist session hint", zap.Error(err))
	}
}

// publishAndUnlock records a change, releases mu and notifies listeners.
// One goroutine delivers at a time and always hands out the newest snapshot,
// so listeners see snapshots in order even when publishes race.
func (r *Resolver) publishAndUnlock() {
	r.version++
	if r.delivering {
		r.mu.Unlock()
		return
	}
	r.delivering = true
	for r.delivered < r.version {
		r.delivered = r.version
		snap := r.snap
		listeners := make([]func(Snapshot), 0, len(r.listeners))
		for _, l := range r.listeners {
			listeners = append(listeners, l)
		}
		r.mu.Unlock()

		for _, l := range listeners {
			r.deliver(l, snap)
		}
		r.mu.Lock()
	}
	r.delivering = false
	r.mu.Unlock()
}

func (r *Resolver) deliver(listener func(Snapshot), snap Snapshot) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Panic in session listener", zap.Any("panic", p))
		}
	}()
	listener(snap)
}
