package logger

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// RequestIDHeader is echoed on every response
	RequestIDHeader = "X-Request-ID"

	ginLoggerKey    = "logger"
	ginRequestIDKey = "request_id"
	ginCompanyIDKey = "company_id"
)

// RequestID assigns a request ID, reusing the inbound header when present
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ginRequestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)
		c.Next()
	}
}

// GinRequestID returns the request ID assigned by RequestID, falling back to the inbound header
func GinRequestID(c *gin.Context) string {
	if id := c.GetString(ginRequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(RequestIDHeader)
}

// SetCompanyID records the active company for the access log line and adds
// it to the request-scoped logger
func SetCompanyID(c *gin.Context, companyID string) {
	c.Set(ginCompanyIDKey, companyID)
	ctx, l := WithCompanyID(c.Request.Context(), ginLogger(c), companyID)
	c.Request = c.Request.WithContext(ctx)
	c.Set(ginLoggerKey, l)
}

// SetUserID adds the signed-in user to the request-scoped logger
func SetUserID(c *gin.Context, userID string) {
	ctx, l := WithUserID(c.Request.Context(), ginLogger(c), userID)
	c.Request = c.Request.WithContext(ctx)
	c.Set(ginLoggerKey, l)
}

// GinMiddleware logs one line per HTTP request and stores a request-scoped
// logger on both the gin context and the request context.
func GinMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		query := c.Request.URL.RawQuery

		reqLogger := logger.With(
			zap.String("request_id", c.GetString(ginRequestIDKey)),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)
		c.Set(ginLoggerKey, reqLogger)

		ctx, _ := WithRequestID(c.Request.Context(), reqLogger, c.GetString(ginRequestIDKey))
		c.Request = c.Request.WithContext(WithContext(ctx, reqLogger))

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, zap.String("query", query))
		}
		if companyID := c.GetString(ginCompanyIDKey); companyID != "" {
			fields = append(fields, zap.String("company_id", companyID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}

		switch {
		case status >= http.StatusInternalServerError:
			reqLogger.Error("HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			reqLogger.Warn("HTTP Request", fields...)
		default:
			reqLogger.Info("HTTP Request", fields...)
		}
	}
}

// Recovery recovers from handler panics and logs them with the request ID
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.String("request_id", c.GetString(ginRequestIDKey)),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.Any("error", err),
					zap.Stack("stacktrace"),
				)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}

// GetGinLogger retrieves the request-scoped logger from the gin context,
// falling back to the request context, with the current trace attached
func GetGinLogger(c *gin.Context) *zap.Logger {
	if c.Request == nil {
		return ginLogger(c)
	}
	return WithTraceContext(c.Request.Context(), ginLogger(c))
}

func ginLogger(c *gin.Context) *zap.Logger {
	if l, ok := c.Value(ginLoggerKey).(*zap.Logger); ok {
		return l
	}
	if c.Request == nil {
		return zap.NewNop()
	}
	return FromContext(c.Request.Context())
}
