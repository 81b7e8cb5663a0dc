package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/resilience"
)

func TestDeterministicProvider_SameTextSameVector(t *testing.T) {
	p := NewDeterministicProvider(16)
	ctx := context.Background()

	v1, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)
	v2, err := p.Embed(ctx, "hello world")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 16)
}

func TestDeterministicProvider_DifferentTextDifferentVector(t *testing.T) {
	p := NewDeterministicProvider(16)
	ctx := context.Background()

	v1, _ := p.Embed(ctx, "hello")
	v2, _ := p.Embed(ctx, "goodbye")
	assert.NotEqual(t, v1, v2)
}

func TestLocalProvider_EmptyTextReturnsZeroVector(t *testing.T) {
	p := NewLocalProvider(8)
	v, err := p.Embed(context.Background(), "")
	require.NoError(t, err)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestLocalProvider_SameTextSameVector(t *testing.T) {
	p := NewLocalProvider(8)
	ctx := context.Background()
	v1, _ := p.Embed(ctx, "the quick brown fox")
	v2, _ := p.Embed(ctx, "the quick brown fox")
	assert.Equal(t, v1, v2)
}

type failingProvider struct{ dims int }

func (f *failingProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("primary down")
}
func (f *failingProvider) Dimensions() int { return f.dims }

func TestCircuitBreakerProvider_FallsBackOnPrimaryFailure(t *testing.T) {
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:              "test",
		FailureThreshold:  1,
		RecoverySeconds:   0,
		HalfOpenSuccesses: 1,
	}, observability.NewNoopLogger(), observability.NewNoopMetrics())

	p := NewCircuitBreakerProvider(&failingProvider{dims: 4}, breaker, observability.NewNoopLogger())

	vec, err := p.Embed(context.Background(), "anything")
	require.NoError(t, err, "callers must never fail due to provider outage")
	assert.Len(t, vec, 4)
}

func TestResize(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 0}, resize([]float32{1, 2}, 3))
	assert.Equal(t, []float32{1, 2}, resize([]float32{1, 2, 3}, 2))
}
