// Package api implements the HTTP shell: gin router, middleware, and
// handlers for the message/search/retention/health surface of spec.md
// §6.1, grounded in the teacher's internal/api conventions
// (middleware.go, errors.go, health.go, panic_recovery.go).
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convomesh/memoryd/internal/apperr"
)

// ErrorResponse is the JSON envelope spec.md §7 requires for every
// non-2xx response.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

// statusFor maps a typed apperr error to its HTTP status code, per
// spec.md §7's error-kind table.
func statusFor(err error) (int, string) {
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, verr.Error()
	}
	var nerr *apperr.NotFoundError
	if errors.As(err, &nerr) {
		return http.StatusNotFound, nerr.Error()
	}
	var rerr *apperr.RateLimitError
	if errors.As(err, &rerr) {
		return http.StatusTooManyRequests, rerr.Error()
	}
	var terr *apperr.TimeoutError
	if errors.As(err, &terr) {
		return http.StatusGatewayTimeout, terr.Error()
	}
	var serr *apperr.StoreError
	if errors.As(err, &serr) {
		return http.StatusInternalServerError, "internal error"
	}
	return http.StatusInternalServerError, "internal error"
}

// ErrorHandlerMiddleware maps the last gin.Error on the context to
// spec.md §7's {detail, request_id} envelope. 5xx responses are logged;
// 4xx are not, matching "nothing in the core swallows errors silently"
// without turning client mistakes into noise.
func ErrorHandlerMiddleware(logger loggerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		requestID, _ := c.Get(requestIDKey)
		reqID, _ := requestID.(string)

		status, detail := statusFor(err)
		if status >= http.StatusInternalServerError {
			logger(detail, err, reqID, c.Request.URL.Path)
		}
		c.AbortWithStatusJSON(status, ErrorResponse{Detail: detail, RequestID: reqID})
	}
}

// loggerFunc decouples ErrorHandlerMiddleware from the observability.Logger
// interface's exact shape, so it's trivial to unit test.
type loggerFunc func(detail string, err error, requestID, path string)
