package embedding

import (
	"context"

	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/resilience"
)

// CircuitBreakerProvider composes a primary Provider with the deterministic
// fallback (spec.md §4.2): on CircuitOpen or primary failure it transparently
// returns the fallback vector, so callers of Embed never fail due to a
// provider outage.
type CircuitBreakerProvider struct {
	primary  Provider
	fallback *DeterministicProvider
	breaker  *resilience.CircuitBreaker
	logger   observability.Logger
}

// NewCircuitBreakerProvider wraps primary with breaker, falling back to a
// DeterministicProvider of the same dimensionality.
func NewCircuitBreakerProvider(primary Provider, breaker *resilience.CircuitBreaker, logger observability.Logger) *CircuitBreakerProvider {
	return &CircuitBreakerProvider{
		primary:  primary,
		fallback: NewDeterministicProvider(primary.Dimensions()),
		breaker:  breaker,
		logger:   logger,
	}
}

// Embed tries the primary provider through the breaker; any failure
// (including an open breaker) falls back to the deterministic vector.
func (p *CircuitBreakerProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := p.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return p.primary.Embed(ctx, text)
	})
	if err != nil {
		p.logger.Warn("embedding provider failed, using fallback", map[string]interface{}{"error": err.Error()})
		return p.fallback.Embed(ctx, text)
	}
	return result.([]float32), nil
}

// Dimensions reports the primary provider's vector length.
func (p *CircuitBreakerProvider) Dimensions() int { return p.primary.Dimensions() }
