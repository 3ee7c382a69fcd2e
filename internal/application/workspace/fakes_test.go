package workspace

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/domain/tenancy"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeAuth struct {
	*identity.EventHub
	mu      sync.Mutex
	session *identity.AuthSession
}

func (f *fakeAuth) GetSession(context.Context) (*identity.AuthSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAuth) SignOut(context.Context) error {
	f.mu.Lock()
	f.session = nil
	f.mu.Unlock()
	f.Emit(identity.AuthEvent{Type: identity.AuthEventSignedOut})
	return nil
}

// fakeTenancy implements the profile, membership and switcher ports
type fakeTenancy struct {
	mu          sync.Mutex
	profiles    map[uuid.UUID]*tenancy.Profile
	memberships map[uuid.UUID]tenancy.Memberships
}

func (f *fakeTenancy) FindByUserID(_ context.Context, userID uuid.UUID) (*tenancy.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeTenancy) SwitchActiveCompany(_ context.Context, userID, companyID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.memberships[userID].Contains(companyID) {
		return shared.ErrUnknownCompany
	}
	f.profiles[userID].ActiveCompanyID = &companyID
	return nil
}

type fakeMemberships struct{ t *fakeTenancy }

func (f fakeMemberships) FindByUserID(_ context.Context, userID uuid.UUID) (tenancy.Memberships, error) {
	f.t.mu.Lock()
	defer f.t.mu.Unlock()
	return append(tenancy.Memberships{}, f.t.memberships[userID]...), nil
}

type fakeAppointments struct {
	mu      sync.Mutex
	items   map[uuid.UUID]scheduling.Appointment
	fetches atomic.Int32
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{items: make(map[uuid.UUID]scheduling.Appointment)}
}

func (f *fakeAppointments) FindByDate(_ context.Context, tenantID uuid.UUID, date string) ([]scheduling.Appointment, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []scheduling.Appointment{}
	for _, a := range f.items {
		if a.TenantID == tenantID && a.Date == date {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (f *fakeAppointments) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*scheduling.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok || a.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAppointments) Save(_ context.Context, a *scheduling.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[a.ID] = *a
	return nil
}

func (f *fakeAppointments) DeleteForTenant(_ context.Context, tenantID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok || a.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeClients struct {
	mu      sync.Mutex
	items   map[uuid.UUID]crm.Client
	fetches atomic.Int32
	since   time.Time
}

func newFakeClients() *fakeClients {
	return &fakeClients{items: make(map[uuid.UUID]crm.Client)}
}

func (f *fakeClients) FindAllForTenant(_ context.Context, tenantID uuid.UUID) ([]crm.Client, error) {
	f.fetches.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []crm.Client{}
	for _, c := range f.items {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeClients) FindByIDForTenant(_ context.Context, tenantID, id uuid.UUID) (*crm.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

func (f *fakeClients) FindInactive(_ context.Context, tenantID uuid.UUID, since time.Time) ([]crm.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	out := []crm.Client{}
	for _, c := range f.items {
		if c.TenantID == tenantID && c.Status == crm.ClientStatusActive && c.IsInactiveSince(since) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeClients) Save(_ context.Context, c *crm.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = *c
	return nil
}

func (f *fakeClients) DeleteForTenant(_ context.Context, tenantID, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok || c.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type publishedChange struct {
	TenantID uuid.UUID
	Entity   string
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []publishedChange
}

func (p *recordingPublisher) Notify(_ context.Context, tenantID uuid.UUID, entity string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, publishedChange{TenantID: tenantID, Entity: entity})
	return nil
}

func (p *recordingPublisher) count(entity string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.changes {
		if c.Entity == entity {
			n++
		}
	}
	return n
}
