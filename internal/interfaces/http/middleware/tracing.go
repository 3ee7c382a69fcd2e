package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tidyops/backend/internal/infrastructure/logger"
	"github.com/tidyops/backend/internal/infrastructure/telemetry"
)

// maxRequestIDLength bounds the request ID copied into span attributes
const maxRequestIDLength = 128

// Tracing returns the otelgin server middleware, or a pass-through when disabled.
// Spans are named "HTTP METHOD route", e.g. "GET /api/v1/appointments".
func Tracing(serviceName string, enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return otelgin.Middleware(serviceName)
}

// SpanAttributes tags the request span with the request, company and user.
// It must run after ContextGate.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			if id := logger.GinRequestID(c); id != "" {
				if len(id) > maxRequestIDLength {
					id = id[:maxRequestIDLength]
				}
				span.SetAttributes(attribute.String("request_id", id))
			}
			if ws := GetWorkspace(c); ws != nil {
				snap := ws.Resolver.Snapshot()
				if snap.ActiveCompanyID != nil {
					span.SetAttributes(attribute.String(telemetry.SpanAttrCompanyID, snap.ActiveCompanyID.String()))
				}
				if snap.User != nil {
					span.SetAttributes(attribute.String(telemetry.SpanAttrUserID, snap.User.ID.String()))
				}
			}
		}
		c.Next()
	}
}

// SpanErrorMarker marks the request span as failed for 4xx and 5xx responses.
// It must run after Tracing.
func SpanErrorMarker() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status < http.StatusBadRequest {
			return
		}
		span.SetStatus(codes.Error, http.StatusText(status))
		span.SetAttributes(attribute.Int("http.status_code", status))
	}
}
