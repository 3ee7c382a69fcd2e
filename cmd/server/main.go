package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "github.com/tidyops/backend/docs"
	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/domain/crm"
	"github.com/tidyops/backend/internal/domain/identity"
	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/infrastructure/auth"
	"github.com/tidyops/backend/internal/infrastructure/cache"
	"github.com/tidyops/backend/internal/infrastructure/config"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/infrastructure/persistence"
	"github.com/tidyops/backend/internal/infrastructure/sessionstore"
	"github.com/tidyops/backend/internal/infrastructure/telemetry"
	"github.com/tidyops/backend/internal/interfaces/http/handler"
	"github.com/tidyops/backend/internal/interfaces/http/middleware"
	"github.com/tidyops/backend/internal/interfaces/http/router"
)

const version = "1.0.0"

//	@title			TidyOps Backend API
//	@version		1.0
//	@description	Session context and cached scheduling and client data for cleaning companies

//	@contact.name	API Support

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// OTLP log bridge must exist before the logger so zap can tee into it
	var extraCores []zapcore.Core
	logProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, zap.NewNop())
	if err != nil {
		panic("Failed to initialize log exporter: " + err.Error())
	}
	if logProvider.IsEnabled() {
		extraCores = append(extraCores, telemetry.NewZapOTELCore(logProvider, cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}, extraCores...)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting TidyOps Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("auth_provider", cfg.Auth.Provider),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider, logProvider)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Profiling.Enabled,
		ServerAddress:   cfg.Profiling.ServerAddress,
		ApplicationName: cfg.Profiling.ApplicationName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Warn("Profiler stop failed", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && cfg.Profiling.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	// Initialize database connection with zap-backed GORM logger
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		persistence.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        "postgresql",
	}, log).Register(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, telemetry.DBMetricsConfig{
		Enabled:            meterProvider.IsEnabled(),
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
		PoolStatsInterval:  cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		defer dbMetrics.Stop()
	}

	// Identity provider
	authProvider, closeAuth, err := newAuthenticator(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize identity provider", zap.Error(err))
	}
	defer closeAuth()

	// Session hint survives restarts so the last active company is restored
	hints, err := sessionstore.Open(cfg.Session.HintStorePath)
	if err != nil {
		log.Fatal("Failed to open session hint store", zap.Error(err), zap.String("path", cfg.Session.HintStorePath))
	}
	defer func() {
		_ = hints.Close()
	}()

	// Read-through caches and cross-instance invalidation
	meter := meterProvider.Meter("tidyops/cache")
	appointmentStore := cache.NewStore[scheduling.Appointment](
		cache.WithName(cache.EntityAppointments),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(log),
		cache.WithMeter(meter),
	)
	defer func() { _ = appointmentStore.Close() }()
	clientStore := cache.NewStore[crm.Client](
		cache.WithName(cache.EntityClients),
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithLogger(log),
		cache.WithMeter(meter),
	)
	defer func() { _ = clientStore.Close() }()

	notifier, err := newChangeNotifier(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize change notifier", zap.Error(err))
	}
	defer func() { _ = notifier.Close() }()

	invalidator := cache.NewInvalidator(notifier, log)
	invalidator.Register(cache.EntityAppointments, appointmentStore)
	invalidator.Register(cache.EntityClients, clientStore)
	go func() {
		if err := invalidator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Change feed stopped", zap.Error(err))
		}
	}()

	// Workspace manager owns the resolver and the tenant-scoped services
	manager := workspace.NewManager(workspace.Dependencies{
		Auth:             authProvider,
		Profiles:         persistence.NewGormProfileRepository(db.DB),
		Memberships:      persistence.NewGormMembershipRepository(db.DB),
		Switcher:         persistence.NewGormCompanySwitcher(db.DB),
		Appointments:     persistence.NewGormAppointmentRepository(db.DB),
		Clients:          persistence.NewGormClientRepository(db.DB),
		AppointmentStore: appointmentStore,
		ClientStore:      clientStore,
		Hints:            hints,
		Publisher:        invalidator,
		Feed:             invalidator,
	},
		workspace.WithManagerLogger(log),
		workspace.WithBootstrapTimeout(cfg.Session.BootstrapTimeout),
		workspace.WithFetchTimeout(cfg.Cache.FetchTimeout),
	)
	defer manager.Close()

	// Build the router before bootstrapping so health checks answer while
	// the session context is still loading
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}
	engine, err := router.New(router.Config{
		ServiceName:      cfg.Telemetry.ServiceName,
		APIVersion:       "v1",
		TracingEnabled:   tracerProvider.IsEnabled(),
		ProfilingEnabled: profiler.IsEnabled(),
		HTTP:             cfg.HTTP,
		Swagger:          cfg.Swagger,
	}, manager, router.Handlers{
		System:  handler.NewSystemHandler(version, manager, map[string]handler.Pinger{"database": db}),
		Session: handler.NewSessionHandler(manager, authProvider),
		Tenant: []router.RouteRegistrar{
			handler.NewAppointmentHandler(),
			handler.NewClientHandler(),
			handler.NewCacheHandler(appointmentStore, clientStore),
			handler.NewStreamHandler(handler.WithStreamLogger(log.Named("stream"))),
		},
	}, log)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	if err := manager.Start(ctx); err != nil {
		log.Error("Initial session bootstrap failed", zap.Error(err))
	}

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newAuthenticator selects the identity provider named in the configuration
func newAuthenticator(cfg *config.Config, log *zap.Logger) (identity.Authenticator, func(), error) {
	store := auth.NewMemoryTokenStore()
	if cfg.Auth.Provider == config.AuthProviderKratos {
		log.Info("Using Kratos identity provider", zap.String("url", cfg.Auth.KratosURL))
		return auth.NewKratosIdentityProvider(cfg.Auth, store, log), func() {}, nil
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	if !cfg.Redis.Enabled {
		return auth.NewJWTIdentityProvider(jwtService, store, auth.NewInMemoryTokenBlacklist(), log), func() {}, nil
	}
	blacklist, err := auth.NewRedisTokenBlacklist(cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	provider := auth.NewJWTIdentityProvider(jwtService, store, blacklist, log)
	return provider, func() { _ = blacklist.Close() }, nil
}

// newChangeNotifier uses Redis Pub/Sub when realtime invalidation is enabled
func newChangeNotifier(cfg *config.Config, log *zap.Logger) (cache.ChangeNotifier, error) {
	factory := cache.NewNotifierFactory(cfg.Redis,
		cache.WithFactoryLogger(log),
		cache.WithFactoryChannel(cfg.Cache.RealtimeChannel),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	if !cfg.Cache.RealtimeEnabled || !cfg.Redis.Enabled {
		return factory.CreateLocalNotifier(), nil
	}
	return factory.CreateNotifier()
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

func shutdownTelemetry(log *zap.Logger, providers ...shutdowner) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}
}
