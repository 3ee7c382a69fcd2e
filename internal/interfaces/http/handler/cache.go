package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/tidyops/backend/internal/infrastructure/cache"
)

// StatsSource reports the activity of one cache store
type StatsSource interface {
	Name() string
	Stats() cache.Stats
}

// InvalidateCacheRequest optionally narrows a manual invalidation to one entity
// @Description Optionally narrows a manual invalidation to one entity
type InvalidateCacheRequest struct {
	Entity string `json:"entity" binding:"omitempty,oneof=appointments clients" example:"appointments"`
}

// InvalidateCacheResponse reports how many cached lists were dropped per entity
// @Description Cached lists dropped per entity
type InvalidateCacheResponse struct {
	Removed map[string]int `json:"removed"`
}

// CacheHandler lets the client force a refetch and inspect cache activity
type CacheHandler struct {
	BaseHandler
	stores []StatsSource
}

// NewCacheHandler creates a CacheHandler reporting on stores
func NewCacheHandler(stores ...StatsSource) *CacheHandler {
	return &CacheHandler{stores: stores}
}

// RegisterRoutes implements router.RouteRegistrar
func (h *CacheHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/cache")
	g.POST("/invalidate", h.Invalidate)
	g.GET("/stats", h.Stats)
}

// Invalidate godoc
// @ID           invalidateCache
// @Summary      Invalidate cached lists
// @Description  Drops the active company's cached lists and tells other processes to do the same.
// @Description  An empty body invalidates every entity.
// @Tags         cache
// @Accept       json
// @Produce      json
// @Param        request body InvalidateCacheRequest false "Entity to invalidate"
// @Success      200 {object} dto.Response{data=InvalidateCacheResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cache/invalidate [post]
func (h *CacheHandler) Invalidate(c *gin.Context) {
	ws, ok := h.Workspace(c)
	if !ok {
		return
	}
	var req InvalidateCacheRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	removed := make(map[string]int, 2)
	if req.Entity == "" || req.Entity == cache.EntityAppointments {
		removed[cache.EntityAppointments] = ws.Appointments.InvalidateAll(ctx)
	}
	if req.Entity == "" || req.Entity == cache.EntityClients {
		removed[cache.EntityClients] = ws.Clients.Invalidate(ctx)
	}
	h.Success(c, InvalidateCacheResponse{Removed: removed})
}

// Stats godoc
// @ID           getCacheStats
// @Summary      Cache statistics
// @Description  Returns hit, miss and invalidation counts per store
// @Tags         cache
// @Produce      json
// @Success      200 {object} dto.Response{data=map[string]cache.Stats}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /cache/stats [get]
func (h *CacheHandler) Stats(c *gin.Context) {
	out := make(map[string]cache.Stats, len(h.stores))
	for _, s := range h.stores {
		out[s.Name()] = s.Stats()
	}
	h.Success(c, out)
}
