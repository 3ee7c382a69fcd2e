package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/domain/tenancy"
	"github.com/tidyops/backend/internal/infrastructure/auth"
	"github.com/tidyops/backend/internal/infrastructure/cache"
	"github.com/tidyops/backend/internal/infrastructure/config"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/infrastructure/persistence"
	"github.com/tidyops/backend/internal/infrastructure/persistence/models"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
	"github.com/tidyops/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.SetupValidator(); err != nil {
		panic(err)
	}
}

// handlerFixture serves the handlers over a sqlite database, signed in as an
// owner of two companies with the first one active
type handlerFixture struct {
	engine       *gin.Engine
	db           *persistence.Database
	manager      *workspace.Manager
	invalidator  *cache.Invalidator
	stream       *StreamHandler
	jwt          *auth.JWTService
	user         identity.Principal
	companyA     uuid.UUID
	companyB     uuid.UUID
	appointments *cache.Store[scheduling.Appointment]
	clients      *cache.Store[crm.Client]
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	db, err := persistence.Open(sqlite.Open("file::memory:"))
	require.NoError(t, err)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.DB.AutoMigrate(models.All()...))

	f := &handlerFixture{
		db:       db,
		user:     identity.Principal{ID: uuid.New(), Email: "dana@sparkle.test"},
		companyA: uuid.New(),
		companyB: uuid.New(),
	}
	now := time.Now().UTC()
	require.NoError(t, db.DB.Create(&[]models.CompanyModel{
		{BaseModel: models.BaseModel{ID: f.companyA, CreatedAt: now, UpdatedAt: now}, Name: "Sparkle Co", Slug: "sparkle", Type: "cleaning", Status: "active"},
		{BaseModel: models.BaseModel{ID: f.companyB, CreatedAt: now, UpdatedAt: now}, Name: "Mop Bros", Slug: "mop-bros", Type: "cleaning", Status: "active"},
	}).Error)
	require.NoError(t, db.DB.Omit("Company").Create(&[]models.MembershipModel{
		{BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}, UserID: f.user.ID, CompanyID: f.companyA, Role: tenancy.RoleOwner},
		{BaseModel: models.BaseModel{ID: uuid.New(), CreatedAt: now.Add(time.Minute), UpdatedAt: now}, UserID: f.user.ID, CompanyID: f.companyB, Role: tenancy.RoleAdmin},
	}).Error)
	require.NoError(t, db.DB.Create(&models.ProfileModel{
		UserID: f.user.ID, FullName: "Dana Tidy", CompanyID: &f.companyA, Role: tenancy.RoleOwner, CreatedAt: now, UpdatedAt: now,
	}).Error)

	f.jwt = auth.NewJWTService(config.JWTConfig{
		Secret:                "handler-test-secret-handler-test-secret",
		AccessTokenExpiration: time.Hour,
		Issuer:                "tidyops",
	})
	provider := auth.NewJWTIdentityProvider(f.jwt, auth.NewMemoryTokenStore(), auth.NewInMemoryTokenBlacklist(), nil)

	f.appointments = cache.NewStore[scheduling.Appointment](cache.WithName(cache.EntityAppointments))
	f.clients = cache.NewStore[crm.Client](cache.WithName(cache.EntityClients))
	f.invalidator = cache.NewInvalidator(cache.NewLocalChangeNotifier(nil), nil)
	f.invalidator.Register(cache.EntityAppointments, f.appointments)
	f.invalidator.Register(cache.EntityClients, f.clients)

	f.manager = workspace.NewManager(workspace.Dependencies{
		Auth:             provider,
		Profiles:         persistence.NewGormProfileRepository(db.DB),
		Memberships:      persistence.NewGormMembershipRepository(db.DB),
		Switcher:         persistence.NewGormCompanySwitcher(db.DB),
		Appointments:     persistence.NewGormAppointmentRepository(db.DB),
		Clients:          persistence.NewGormClientRepository(db.DB),
		AppointmentStore: f.appointments,
		ClientStore:      f.clients,
		Publisher:        f.invalidator,
		Feed:             f.invalidator,
	})

	f.stream = NewStreamHandler(WithStreamHeartbeat(20 * time.Millisecond))
	f.engine = gin.New()
	f.engine.Use(logger.RequestID())
	api := f.engine.Group("/api/v1", middleware.ContextGate(f.manager))
	NewSessionHandler(f.manager, provider).RegisterRoutes(api)
	tenant := api.Group("", middleware.RequireCompany())
	NewAppointmentHandler().RegisterRoutes(tenant)
	NewClientHandler().RegisterRoutes(tenant)
	NewCacheHandler(f.appointments, f.clients).RegisterRoutes(tenant)
	f.stream.RegisterRoutes(tenant)

	t.Cleanup(func() {
		f.manager.Close()
		_ = f.appointments.Close()
		_ = f.clients.Close()
		_ = db.Close()
	})
	return f
}

// signIn starts the manager and signs the user in through the API
func (f *handlerFixture) signIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.manager.Start(context.Background()))
	token, _, err := f.jwt.GenerateAccessToken(f.user)
	require.NoError(t, err)
	code, env := f.do(t, http.MethodPost, "/api/v1/session", SignInRequest{Token: token})
	require.Equal(t, http.StatusOK, code)
	sess := decode[SessionResponse](t, env.Data)
	require.NotNil(t, sess.ActiveCompanyID)
	require.Equal(t, f.companyA, *sess.ActiveCompanyID)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

func (f *handlerFixture) do(t *testing.T, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (f *handlerFixture) createClient(t *testing.T, name string) ClientResponse {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/api/v1/clients", ClientRequest{Name: name})
	require.Equal(t, http.StatusCreated, code)
	return decode[ClientResponse](t, env.Data)
}

func (f *handlerFixture) createAppointment(t *testing.T, clientID uuid.UUID, date, start, end string) AppointmentResponse {
	t.Helper()
	code, env := f.do(t, http.MethodPost, "/api/v1/appointments", map[string]any{
		"client_id": clientID, "date": date, "start_time": start, "end_time": end, "price": "120.00",
	})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	return decode[AppointmentResponse](t, env.Data)
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}
