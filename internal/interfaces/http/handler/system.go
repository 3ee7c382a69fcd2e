package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tidyops/backend/internal/interfaces/http/dto"
	"github.com/tidyops/backend/internal/interfaces/http/middleware"
)

// Pinger is a dependency whose reachability is reported by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	GoVersion     string            `json:"go_version"`
	Uptime        string            `json:"uptime"`
	ContextLoaded bool              `json:"context_loaded"`
	Checks        map[string]string `json:"checks"`
}

// SystemHandler serves liveness and readiness information
type SystemHandler struct {
	BaseHandler
	version    string
	startTime  time.Time
	workspaces middleware.WorkspaceSource
	checks     map[string]Pinger
	timeout    time.Duration
}

// NewSystemHandler creates a SystemHandler that pings checks on every health request
func NewSystemHandler(version string, workspaces middleware.WorkspaceSource, checks map[string]Pinger) *SystemHandler {
	return &SystemHandler{
		version:    version,
		startTime:  time.Now(),
		workspaces: workspaces,
		checks:     checks,
		timeout:    2 * time.Second,
	}
}

// Health reports 200 when every dependency answers and 503 otherwise
//
//	GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Checks:    make(map[string]string, len(h.checks)),
	}
	if ws := h.workspaces.Current(); ws != nil {
		resp.ContextLoaded = ws.Resolver.Snapshot().PlatformContextLoaded
	}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			resp.Checks[name] = err.Error()
			resp.Status = "unhealthy"
			continue
		}
		resp.Checks[name] = "ok"
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: status == http.StatusOK, Data: resp})
}

// Ping answers without touching any dependency
//
//	GET /ping
func (h *SystemHandler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(gin.H{
		"message":   "pong",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}))
}
