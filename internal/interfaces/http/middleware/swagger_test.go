package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/tidyops/backend/internal/infrastructure/config"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

func serveSwagger(cfg config.SwaggerConfig, remoteAddr string) *httptest.ResponseRecorder {
	r := gin.New()
	r.GET("/swagger/*any", SwaggerProtection(cfg, noWorkspace{}), func(c *gin.Context) {
		c.String(http.StatusOK, "docs")
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestSwaggerProtection(t *testing.T) {
	tests := []struct {
		name   string
		cfg    config.SwaggerConfig
		remote string
		status int
		code   string
	}{
		{"disabled", config.SwaggerConfig{}, "192.0.2.1:1234", http.StatusNotFound, dto.ErrCodeNotFound},
		{"open", config.SwaggerConfig{Enabled: true}, "192.0.2.1:1234", http.StatusOK, ""},
		{"cidr match", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"192.0.2.0/24"}}, "192.0.2.1:1234", http.StatusOK, ""},
		{"exact ip match", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.1", "192.0.2.1"}}, "192.0.2.1:1234", http.StatusOK, ""},
		{"ip not listed", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"10.0.0.0/8"}}, "192.0.2.1:1234", http.StatusForbidden, dto.ErrCodeForbidden},
		{"invalid entries allow nothing", config.SwaggerConfig{Enabled: true, AllowedIPs: []string{"not-an-ip"}}, "192.0.2.1:1234", http.StatusForbidden, dto.ErrCodeForbidden},
		{"auth without a session", config.SwaggerConfig{Enabled: true, RequireAuth: true}, "192.0.2.1:1234", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveSwagger(tt.cfg, tt.remote)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Contains(t, w.Body.String(), tt.code)
			} else {
				assert.Equal(t, "docs", w.Body.String())
			}
		})
	}
}
