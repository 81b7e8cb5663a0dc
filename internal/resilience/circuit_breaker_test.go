package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/observability"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:              "test",
		FailureThreshold:  2,
		RecoverySeconds:   50 * time.Millisecond,
		HalfOpenSuccesses: 1,
	}, observability.NewNoopLogger(), observability.NewNoopMetrics())

	failing := func(ctx context.Context) (interface{}, error) { return nil, errors.New("boom") }

	_, err := cb.Execute(context.Background(), failing)
	assert.Error(t, err)
	_, err = cb.Execute(context.Background(), failing)
	assert.Error(t, err)

	_, err = cb.Execute(context.Background(), failing)
	var circuitErr *apperr.CircuitOpenError
	require.ErrorAs(t, err, &circuitErr)
}

func TestCircuitBreaker_RecoversAfterTimeout(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:              "test2",
		FailureThreshold:  1,
		RecoverySeconds:   20 * time.Millisecond,
		HalfOpenSuccesses: 1,
	}, observability.NewNoopLogger(), observability.NewNoopMetrics())

	_, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)

	time.Sleep(40 * time.Millisecond)

	result, err := cb.Execute(context.Background(), func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}
