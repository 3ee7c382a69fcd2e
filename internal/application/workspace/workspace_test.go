package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/domain/shared"
	"github.com/tidyops/backend/internal/domain/tenancy"
	"github.com/tidyops/backend/internal/infrastructure/cache"
)

type harness struct {
	clock        *testClock
	user         identity.Principal
	companyA     uuid.UUID
	companyB     uuid.UUID
	auth         *fakeAuth
	tenancy      *fakeTenancy
	appointments *fakeAppointments
	clients      *fakeClients
	publisher    *recordingPublisher
	invalidator  *cache.Invalidator
	apptStore    *cache.Store[scheduling.Appointment]
	clientStore  *cache.Store[crm.Client]
	manager      *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:        &testClock{now: time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)},
		user:         identity.Principal{ID: uuid.New(), Email: "dana@sparkle.test"},
		companyA:     uuid.New(),
		companyB:     uuid.New(),
		appointments: newFakeAppointments(),
		clients:      newFakeClients(),
		publisher:    &recordingPublisher{},
	}
	h.auth = &fakeAuth{EventHub: identity.NewEventHub(nil), session: &identity.AuthSession{ID: "s1", Principal: h.user}}
	h.tenancy = &fakeTenancy{
		profiles: map[uuid.UUID]*tenancy.Profile{
			h.user.ID: {UserID: h.user.ID, CompanyID: &h.companyA},
		},
		memberships: map[uuid.UUID]tenancy.Memberships{
			h.user.ID: {
				{ID: uuid.New(), CompanyID: h.companyA, Role: tenancy.RoleOwner, Company: tenancy.Company{ID: h.companyA, Name: "Sparkle Co"}},
				{ID: uuid.New(), CompanyID: h.companyB, Role: tenancy.RoleAdmin, Company: tenancy.Company{ID: h.companyB, Name: "Mop Bros"}},
			},
		},
	}
	h.apptStore = cache.NewStore[scheduling.Appointment](cache.WithClock(h.clock.Now), cache.WithName("appointments"))
	h.clientStore = cache.NewStore[crm.Client](cache.WithClock(h.clock.Now), cache.WithName("clients"))
	h.invalidator = cache.NewInvalidator(cache.NewLocalChangeNotifier(nil), nil)
	h.invalidator.Register(cache.EntityAppointments, h.apptStore)
	h.invalidator.Register(cache.EntityClients, h.clientStore)

	h.manager = NewManager(Dependencies{
		Auth:             h.auth,
		Profiles:         h.tenancy,
		Memberships:      fakeMemberships{t: h.tenancy},
		Switcher:         h.tenancy,
		Appointments:     h.appointments,
		Clients:          h.clients,
		AppointmentStore: h.apptStore,
		ClientStore:      h.clientStore,
		Publisher:        h.publisher,
		Feed:             h.invalidator,
	}, WithManagerClock(h.clock.Now))

	t.Cleanup(func() {
		h.manager.Close()
		_ = h.apptStore.Close()
		_ = h.clientStore.Close()
	})
	return h
}

func (h *harness) start(t *testing.T) *Workspace {
	t.Helper()
	require.NoError(t, h.manager.Start(context.Background()))
	ws := h.manager.Current()
	require.NotNil(t, ws)
	return ws
}

func (h *harness) seedClient(t *testing.T, tenantID uuid.UUID, name string) *crm.Client {
	t.Helper()
	c, err := crm.NewClient(tenantID, name)
	require.NoError(t, err)
	require.NoError(t, h.clients.Save(context.Background(), c))
	return c
}

func (h *harness) seedAppointment(t *testing.T, tenantID, clientID uuid.UUID, date, start string) *scheduling.Appointment {
	t.Helper()
	a, err := scheduling.NewAppointment(tenantID, clientID, date, start, "23:00", "", decimal.NewFromInt(100))
	require.NoError(t, err)
	require.NoError(t, h.appointments.Save(context.Background(), a))
	return a
}

func TestManager_StartBuildsWorkspace(t *testing.T) {
	h := newHarness(t)
	ws := h.start(t)

	assert.Equal(t, uint64(1), ws.Generation)
	assert.Equal(t, h.companyA, ws.CompanyID())
	snap := ws.Resolver.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.PlatformContextLoaded)
}

func TestAppointmentService_ListByDateUsesCache(t *testing.T) {
	h := newHarness(t)
	client := h.seedClient(t, h.companyA, "Amy")
	h.seedAppointment(t, h.companyA, client.ID, "2024-03-15", "10:00")
	h.seedAppointment(t, h.companyB, client.ID, "2024-03-15", "10:00")
	ws := h.start(t)
	ctx := context.Background()

	got, err := ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(1), h.appointments.fetches.Load())

	h.clock.Advance(30 * time.Second)
	_, err = ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, int32(1), h.appointments.fetches.Load(), "fresh entries are served from the cache")

	_, err = ws.Appointments.ListByDate(ctx, "2024-03-16")
	require.NoError(t, err)
	assert.Equal(t, int32(2), h.appointments.fetches.Load(), "each date is its own partition")

	h.clock.Advance(31 * time.Second)
	_, err = ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, int32(3), h.appointments.fetches.Load(), "entries expire after the TTL")

	_, err = ws.Appointments.ListByDate(ctx, "15/03/2024")
	assert.Error(t, err)
}

func TestAppointmentService_WritesInvalidateAllDates(t *testing.T) {
	h := newHarness(t)
	client := h.seedClient(t, h.companyA, "Amy")
	existing := h.seedAppointment(t, h.companyA, client.ID, "2024-03-15", "08:00")
	ws := h.start(t)
	ctx := context.Background()

	_, err := ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	_, err = ws.Appointments.ListByDate(ctx, "2024-03-16")
	require.NoError(t, err)
	require.Equal(t, 2, h.apptStore.Len())

	created, err := ws.Appointments.Create(ctx, CreateAppointmentInput{
		ClientID:  client.ID,
		Date:      "2024-03-15",
		StartTime: "13:00",
		EndTime:   "15:00",
		Price:     decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	assert.Equal(t, h.companyA, created.TenantID)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, h.user.ID, *created.CreatedBy)
	assert.Equal(t, 0, h.apptStore.Len())
	assert.Equal(t, 1, h.publisher.count(cache.EntityAppointments))

	got, err := ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, existing.ID, got[0].ID)
	assert.Equal(t, created.ID, got[1].ID)

	t.Run("reschedule", func(t *testing.T) {
		moved, err := ws.Appointments.Reschedule(ctx, created.ID, RescheduleAppointmentInput{Date: "2024-03-16", StartTime: "09:00", EndTime: "10:00"})
		require.NoError(t, err)
		assert.Equal(t, "2024-03-16", moved.Date)

		got, err := ws.Appointments.ListByDate(ctx, "2024-03-15")
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("cancel and delete", func(t *testing.T) {
		cancelled, err := ws.Appointments.Cancel(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, scheduling.AppointmentStatusCancelled, cancelled.Status)

		require.NoError(t, ws.Appointments.Delete(ctx, created.ID))
		assert.ErrorIs(t, ws.Appointments.Delete(ctx, created.ID), shared.ErrNotFound)
	})

	t.Run("unknown client", func(t *testing.T) {
		_, err := ws.Appointments.Create(ctx, CreateAppointmentInput{
			ClientID: uuid.New(), Date: "2024-03-15", StartTime: "13:00", EndTime: "14:00",
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestAppointmentService_CompleteRecordsClientService(t *testing.T) {
	h := newHarness(t)
	client := h.seedClient(t, h.companyA, "Amy")
	a := h.seedAppointment(t, h.companyA, client.ID, "2024-03-15", "08:00")
	ws := h.start(t)
	ctx := context.Background()

	_, err := ws.Clients.List(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, h.clientStore.Len())

	done, err := ws.Appointments.Complete(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduling.AppointmentStatusCompleted, done.Status)

	stored, err := h.clients.FindByIDForTenant(ctx, h.companyA, client.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastServiceDate)
	assert.Equal(t, h.clock.Now(), *stored.LastServiceDate)
	assert.Equal(t, 0, h.clientStore.Len(), "client list is invalidated")
	assert.Equal(t, 1, h.publisher.count(cache.EntityClients))

	_, err = ws.Appointments.Complete(ctx, a.ID)
	assert.Error(t, err, "a closed appointment cannot be completed again")
}

func TestClientService(t *testing.T) {
	h := newHarness(t)
	ws := h.start(t)
	ctx := context.Background()

	list, err := ws.Clients.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NotNil(t, list)

	c, err := ws.Clients.Create(ctx, ClientInput{Name: "  Bob ", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", c.Name)
	assert.Equal(t, crm.StageLead, c.Stage)

	list, err = ws.Clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int32(2), h.clients.fetches.Load())

	_, err = ws.Clients.Create(ctx, ClientInput{Name: "Eve", Email: "not-an-email"})
	assert.Error(t, err)

	moved, err := ws.Clients.MoveStage(ctx, c.ID, crm.StageQuoted)
	require.NoError(t, err)
	assert.Equal(t, crm.StageQuoted, moved.Stage)

	updated, err := ws.Clients.Update(ctx, c.ID, ClientInput{Name: "Robert", Phone: "555-0100"})
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.Name)

	list, err = ws.Clients.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Robert", list[0].Name)

	inactive, err := ws.Clients.ListInactive(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, inactive, 1)
	assert.Equal(t, time.Date(2024, 2, 14, 0, 0, 0, 0, time.UTC), h.clients.since)

	require.NoError(t, ws.Clients.Delete(ctx, c.ID))
	list, err = ws.Clients.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWorkspace_NoActiveCompany(t *testing.T) {
	h := newHarness(t)
	h.tenancy.profiles[h.user.ID] = &tenancy.Profile{UserID: h.user.ID}
	ws := h.start(t)
	ctx := context.Background()

	assert.Equal(t, uuid.Nil, ws.CompanyID())

	appts, err := ws.Appointments.ListByDate(ctx, "2024-03-15")
	require.NoError(t, err)
	assert.Empty(t, appts)
	clients, err := ws.Clients.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)
	assert.Equal(t, int32(0), h.appointments.fetches.Load())
	assert.Equal(t, int32(0), h.clients.fetches.Load())

	_, err = ws.Clients.Create(ctx, ClientInput{Name: "Amy"})
	assert.ErrorIs(t, err, shared.ErrContextNotReady)
	assert.ErrorIs(t, ws.Appointments.Delete(ctx, uuid.New()), shared.ErrContextNotReady)
	assert.Equal(t, 0, ws.Appointments.InvalidateAll(ctx))
}

func TestManager_SwitchCompanyRebuildsWorkspace(t *testing.T) {
	h := newHarness(t)
	h.seedClient(t, h.companyA, "Amy")
	h.seedClient(t, h.companyB, "Bea")
	old := h.start(t)
	ctx := context.Background()

	day := old.Appointments.NewDayQuery()
	day.Load(ctx, old.CompanyID(), "2024-03-15")

	list, err := old.Clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Amy", list[0].Name)

	require.NoError(t, old.Resolver.SwitchCompany(ctx, h.companyB))

	ws := h.manager.Current()
	require.NotSame(t, old, ws)
	assert.Equal(t, uint64(2), ws.Generation)
	assert.Equal(t, h.companyB, ws.CompanyID())

	list, err = ws.Clients.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Bea", list[0].Name)

	assert.Equal(t, uuid.Nil, old.CompanyID(), "a closed workspace has no tenant")
	_, err = old.Clients.Create(ctx, ClientInput{Name: "Leak"})
	assert.ErrorIs(t, err, shared.ErrContextNotReady)
	assert.Equal(t, 0, old.Appointments.queries.len())
	assert.False(t, day.State().IsLoading)

	assert.ErrorIs(t, ws.Resolver.SwitchCompany(ctx, uuid.New()), shared.ErrUnknownCompany)
}

func TestManager_SignOutRebuildsWorkspace(t *testing.T) {
	h := newHarness(t)
	old := h.start(t)

	require.NoError(t, old.Resolver.Logout(context.Background()))

	ws := h.manager.Current()
	require.NotSame(t, old, ws)
	snap := ws.Resolver.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.True(t, snap.PlatformContextLoaded)
	assert.Equal(t, uuid.Nil, ws.CompanyID())
}

func TestWorkspace_RemoteChangeRefreshesOpenQueries(t *testing.T) {
	h := newHarness(t)
	client := h.seedClient(t, h.companyA, "Amy")
	ws := h.start(t)
	ctx := context.Background()

	q := ws.Appointments.NewDayQuery()
	state, err := q.LoadAndWait(ctx, ws.CompanyID(), "2024-03-15")
	require.NoError(t, err)
	assert.Empty(t, state.Data)

	h.seedAppointment(t, h.companyA, client.ID, "2024-03-15", "10:00")
	h.invalidator.Handle(cache.ChangeMessage{TenantID: h.companyA, Entity: cache.EntityAppointments, Origin: "another-process"})

	state, err = q.Await(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Data, 1)
	assert.Equal(t, int32(2), h.appointments.fetches.Load())

	h.invalidator.Handle(cache.ChangeMessage{TenantID: h.companyB, Entity: cache.EntityAppointments, Origin: "another-process"})
	assert.Equal(t, int32(2), h.appointments.fetches.Load(), "other tenants' changes are ignored")
}

func TestWorkspace_ClosedQueriesLeaveTheRegistry(t *testing.T) {
	h := newHarness(t)
	ws := h.start(t)

	day := ws.Appointments.NewDayQuery()
	clients := ws.Clients.NewQuery()
	assert.Equal(t, 1, ws.Appointments.queries.len())
	assert.Equal(t, 1, ws.Clients.queries.len())

	day.Close()
	clients.Close()
	assert.Eventually(t, func() bool {
		return ws.Appointments.queries.len() == 0 && ws.Clients.queries.len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, ws.Appointments.queries.refreshTenant(ws.CompanyID()))
}
