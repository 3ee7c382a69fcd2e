package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

func TestProfilingLabels(t *testing.T) {
	run := func(enabled bool) (route, tenant string) {
		r := gin.New()
		r.Use(func(c *gin.Context) {
			c.Set(CompanyIDKey, "0b9e2b9e-6b1f-4c1e-9d6a-1f3b5e0c7a11")
			c.Next()
		}, ProfilingLabels(enabled))
		r.GET("/api/v1/clients/:id", func(c *gin.Context) {
			route, _ = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
			tenant, _ = pprof.Label(c.Request.Context(), telemetry.ProfilingLabelTenantID)
			c.Status(http.StatusOK)
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/clients/42", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		return route, tenant
	}

	route, tenant := run(true)
	assert.Equal(t, "/api/v1/clients/:id", route)
	assert.Equal(t, "0b9e2b9e-6b1f-4c1e-9d6a-1f3b5e0c7a11", tenant)

	route, tenant = run(false)
	assert.Empty(t, route)
	assert.Empty(t, tenant)
}
