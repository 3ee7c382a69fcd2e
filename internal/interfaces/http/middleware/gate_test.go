package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/application/workspace"
	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

type noWorkspace struct{}

func (noWorkspace) Current() *workspace.Workspace { return nil }

func TestContextGate_NotStarted(t *testing.T) {
	r := gin.New()
	r.Use(logger.RequestID(), ContextGate(noWorkspace{}))
	r.GET("/api/v1/session", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set(logger.RequestIDHeader, "req-1")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, dto.ErrCodeUnavailable, resp.Error.Code)
	assert.Equal(t, "req-1", resp.Error.RequestID)
}

func TestRequireCompany_WithoutWorkspace(t *testing.T) {
	r := gin.New()
	r.Use(RequireCompany())
	r.GET("/api/v1/clients", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrCodeContextNotReady)
}
