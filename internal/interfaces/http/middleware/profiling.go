package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

// ProfilingLabels tags CPU samples taken while serving a tenant route with
// the route pattern, the method and the active company. Must run after
// RequireCompany.
func ProfilingLabels(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		labels := map[string]string{
			telemetry.ProfilingLabelRoute:    c.FullPath(),
			telemetry.ProfilingLabelMethod:   c.Request.Method,
			telemetry.ProfilingLabelTenantID: c.GetString(CompanyIDKey),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
