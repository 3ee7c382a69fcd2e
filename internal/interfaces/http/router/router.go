package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/infrastructure/config"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/interfaces/http/handler"
	"github.com/tidyops/backend/internal/interfaces/http/middleware"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Config holds router settings
type Config struct {
	ServiceName    string
	APIVersion     string
	TracingEnabled bool
	// ProfilingEnabled labels tenant route samples for Pyroscope
	ProfilingEnabled bool
	HTTP           config.HTTPConfig
	// Swagger guards /swagger; the spec itself is registered by the docs package
	Swagger config.SwaggerConfig
}

// Handlers are the route groups served by the API
type Handlers struct {
	System *handler.SystemHandler
	// Session is served as soon as the context has loaded
	Session RouteRegistrar
	// Tenant groups additionally require an active company
	Tenant []RouteRegistrar
}

// New builds the gin engine:
//
//	/health, /ping                    always served
//	/swagger/*                        when enabled, see middleware.SwaggerProtection
//	/api/{version}/session...         once the session context has loaded
//	/api/{version}/{appointments,...} once loaded and a company is active
func New(cfg Config, workspaces middleware.WorkspaceSource, h Handlers, log *zap.Logger) (*gin.Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	engine.Use(
		logger.RequestID(),
		middleware.Tracing(cfg.ServiceName, cfg.TracingEnabled),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.SpanErrorMarker(),
		middleware.CORS(middleware.CORSConfigFromHTTP(cfg.HTTP)),
		middleware.Secure(),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	if h.System != nil {
		engine.GET("/health", h.System.Health)
		engine.GET("/ping", h.System.Ping)
	}

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, workspaces),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	api := engine.Group("/api/"+cfg.APIVersion,
		middleware.ContextGate(workspaces),
		middleware.SpanAttributes(),
	)
	if h.Session != nil {
		h.Session.RegisterRoutes(api)
	}

	tenant := api.Group("",
		middleware.RequireCompany(),
		middleware.ProfilingLabels(cfg.ProfilingEnabled),
	)
	for _, r := range h.Tenant {
		r.RegisterRoutes(tenant)
	}
	return engine, nil
}
