package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

// Gin context keys set by the gate
const (
	WorkspaceKey = "workspace"
	CompanyIDKey = "company_id"
)

// WorkspaceSource yields the live workspace, nil before the first one is built
type WorkspaceSource interface {
	Current() *workspace.Workspace
}

// ContextGate holds API requests back with 503 until the session context has
// loaded, then pins the live workspace to the request so a concurrent rebuild
// cannot change it mid-request
func ContextGate(source WorkspaceSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := source.Current()
		if ws == nil || !ws.Resolver.Snapshot().PlatformContextLoaded {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeUnavailable,
				"Session context is still loading",
				logger.GinRequestID(c),
			))
			return
		}
		c.Set(WorkspaceKey, ws)
		if userID := ws.Resolver.Snapshot().UserID(); userID != uuid.Nil {
			logger.SetUserID(c, userID.String())
		}
		c.Next()
	}
}

// RequireCompany rejects tenant-scoped requests with 409 when no company is active
func RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) {
		ws := GetWorkspace(c)
		if ws == nil || ws.CompanyID() == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeContextNotReady,
				"Select a company before using this resource",
				logger.GinRequestID(c),
			))
			return
		}
		companyID := ws.CompanyID().String()
		c.Set(CompanyIDKey, companyID)
		logger.SetCompanyID(c, companyID)
		c.Next()
	}
}

// GetWorkspace returns the workspace pinned by ContextGate, or nil
func GetWorkspace(c *gin.Context) *workspace.Workspace {
	if v, ok := c.Get(WorkspaceKey); ok {
		if ws, ok := v.(*workspace.Workspace); ok {
			return ws
		}
	}
	return nil
}
