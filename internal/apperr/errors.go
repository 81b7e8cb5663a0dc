// Package apperr defines the typed error taxonomy shared by every layer of
// memoryd, from the store up through the HTTP shell.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

// ValidationError reports malformed input: size/charset limits, out-of-range
// numeric fields, or unknown shapes. Surfaced as HTTP 400.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a missing entity (message, rule, policy). Surfaced
// as HTTP 404.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// NewNotFoundError constructs a NotFoundError.
func NewNotFoundError(kind, id string) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

// RateLimitError reports that an admission-control limiter rejected the
// request. Surfaced as HTTP 429.
type RateLimitError struct {
	Limiter string
	Limit   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded on %s limiter (%s)", e.Limiter, e.Limit)
}

// NewRateLimitError constructs a RateLimitError.
func NewRateLimitError(limiter, limit string) *RateLimitError {
	return &RateLimitError{Limiter: limiter, Limit: limit}
}

// TimeoutError reports that a request exceeded its configured budget.
// Surfaced as HTTP 504.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("operation %q timed out", e.Operation)
}

// NewTimeoutError constructs a TimeoutError.
func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{Operation: operation}
}

// StoreError wraps a driver-level failure that survived the repository's
// internal transient-error retry. Surfaced as HTTP 500.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err as a StoreError for operation op.
func NewStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// CircuitOpenError reports a short-circuited call while a breaker is open.
// It is never surfaced to HTTP clients directly — callers decorate with a
// fallback (see internal/embedding) — but is retained as a typed error so
// callers can detect it with errors.As.
type CircuitOpenError struct {
	Name string
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q is open", e.Name)
}

// NewCircuitOpenError constructs a CircuitOpenError.
func NewCircuitOpenError(name string) *CircuitOpenError {
	return &CircuitOpenError{Name: name}
}

// Sentinel errors for simple, parameterless conditions.
var (
	// ErrVectorSearchUnsupported is returned by a Store whose backend has no
	// native vector distance operator; callers fall back to in-process ranking.
	ErrVectorSearchUnsupported = errors.New("vector search unsupported by this store backend")

	// ErrJobMessageMissing marks a claimed embedding job whose message row is gone.
	ErrJobMessageMissing = errors.New("message for embedding job no longer exists")

	// ErrNoRows marks an absent row where the caller expects "found or absent"
	// rather than a hard error.
	ErrNoRows = errors.New("no matching row")
)
