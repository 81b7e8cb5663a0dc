package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/auth"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/resilience"
)

const requestIDKey = "request_id"

// RequestID assigns a UUID to every request, used for log correlation and
// the error envelope's request_id field.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs method/path/status/latency, mirroring the teacher's
// middleware.go RequestLogger.
func RequestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("request", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      c.Writer.Status(),
			"latency_ms":  time.Since(start).Milliseconds(),
			"request_id":  c.GetString(requestIDKey),
		})
	}
}

// Recovery converts a panic into a 500 response instead of killing the
// connection, logging the stack trace for diagnosis.
func Recovery(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", map[string]interface{}{
					"error": fmt.Sprintf("%v", r),
					"path":  c.Request.URL.Path,
					"stack": string(debug.Stack()),
				})
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Detail:    "internal error",
					RequestID: c.GetString(requestIDKey),
				})
			}
		}()
		c.Next()
	}
}

// MaxBytes rejects request bodies over limit with a 413, per spec.md
// §6.1's "413 when body exceeds request_max_bytes".
func MaxBytes(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
		if c.Writer.Status() == http.StatusRequestEntityTooLarge {
			return
		}
		for _, e := range c.Errors {
			if e.Err != nil && strings.Contains(e.Err.Error(), "http: request body too large") {
				c.Errors = c.Errors[:0]
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
					Detail:    "request body exceeds maximum allowed size",
					RequestID: c.GetString(requestIDKey),
				})
				return
			}
		}
	}
}

// Timeout bounds the whole handler chain to d, aborting with 504 if the
// deadline is hit before the handler finishes.
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		done := make(chan struct{})
		go func() {
			c.Next()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, ErrorResponse{
				Detail:    "request exceeded its time budget",
				RequestID: c.GetString(requestIDKey),
			})
		}
	}
}

// RateLimit applies a SlidingWindowLimiter keyed by keyFunc, rejecting
// with 429 when the limit is exceeded. Two instances are wired in
// router.go: one keyed by tenant_id (per-tenant limit), one keyed by a
// constant ("global") for the process-wide limit.
func RateLimit(name string, limiter *resilience.SlidingWindowLimiter, keyFunc func(c *gin.Context) string, metrics observability.MetricsClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)
		if !limiter.Allow(key) {
			if metrics != nil {
				metrics.IncrCounter("rate_limited_total", map[string]string{"limiter": name})
			}
			rateErr := apperr.NewRateLimitError(name, key)
			c.Error(rateErr)
			c.Abort()
			return
		}
		c.Next()
	}
}

const claimsTenantKey = "jwt_tenant_id"

// AuthMiddleware rejects requests missing a valid bearer token. It is only
// wired into the router when server.jwt_secret is configured — deployments
// that put an auth proxy in front of memoryd can leave it unset.
func AuthMiddleware(validator *auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := validator.ValidateBearer(c.GetHeader("Authorization"))
		if err != nil {
			c.Error(apperr.NewValidationError("authorization", "missing or invalid bearer token"))
			c.Abort()
			return
		}
		c.Set(claimsTenantKey, claims.TenantID)
		c.Next()
	}
}
