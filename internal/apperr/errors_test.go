package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_MessageIncludesFieldAndReason(t *testing.T) {
	err := NewValidationError("tenant_id", "must not be empty")
	assert.Contains(t, err.Error(), "tenant_id")
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestNotFoundError_MessageIncludesKindAndID(t *testing.T) {
	err := NewNotFoundError("message", "msg-1")
	assert.Contains(t, err.Error(), "message")
	assert.Contains(t, err.Error(), "msg-1")
}

func TestRateLimitError_MessageIncludesLimiterAndLimit(t *testing.T) {
	err := NewRateLimitError("tenant", "120/minute")
	assert.Contains(t, err.Error(), "tenant")
	assert.Contains(t, err.Error(), "120/minute")
}

func TestTimeoutError_MessageIncludesOperation(t *testing.T) {
	err := NewTimeoutError("retrieve")
	assert.Contains(t, err.Error(), "retrieve")
}

func TestStoreError_UnwrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("connection refused")
	err := NewStoreError("CreateMessage", underlying)

	assert.ErrorIs(t, err, underlying)
	assert.Contains(t, err.Error(), "CreateMessage")
}

func TestCircuitOpenError_MessageIncludesName(t *testing.T) {
	err := NewCircuitOpenError("embedding_provider")
	assert.Contains(t, err.Error(), "embedding_provider")
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrNoRows, ErrVectorSearchUnsupported))
	assert.False(t, errors.Is(ErrNoRows, ErrJobMessageMissing))
}

func TestTypedErrors_AreDetectableWithErrorsAs(t *testing.T) {
	var err error = NewValidationError("role", "unknown")

	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))

	var nerr *NotFoundError
	assert.False(t, errors.As(err, &nerr))
}
