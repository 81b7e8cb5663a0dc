// Package resilience wraps the embedding provider's failure-isolation and
// rate-limiting concerns: a sony/gobreaker circuit breaker, a sliding-window
// admission-control limiter, and a cenkalti/backoff/v4 retry helper.
package resilience

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/observability"
)

// CircuitBreakerConfig maps directly onto spec.md §4.2's three knobs.
type CircuitBreakerConfig struct {
	Name               string
	FailureThreshold   uint32
	RecoverySeconds    time.Duration
	HalfOpenSuccesses  uint32
}

// CircuitBreaker wraps gobreaker.CircuitBreaker configured so its native
// state machine (closed/open/half-open) matches spec.md §4.2 exactly:
// ReadyToTrip fires at FailureThreshold consecutive failures, Timeout is
// the open->half-open recovery window, and MaxRequests is the number of
// consecutive half-open successes required to close again.
type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker
	logger observability.Logger
	metrics observability.MetricsClient
}

// NewCircuitBreaker builds a CircuitBreaker from cfg, logging every state
// transition as a structured warning (spec.md §7: "the circuit breaker is
// the single exception [to never swallowing errors] and emits a
// structured warning on every transition").
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenSuccesses,
		Timeout:     cfg.RecoverySeconds,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state transition", map[string]interface{}{
				"name": name, "from": from.String(), "to": to.String(),
			})
			if metrics != nil {
				metrics.IncrCounter("circuit_transitions_total", map[string]string{"name": name, "to_state": to.String()})
			}
		},
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings), logger: logger, metrics: metrics}
}

// Execute runs fn through the breaker. An open breaker returns
// *apperr.CircuitOpenError without calling fn.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, apperr.NewCircuitOpenError(b.cb.Name())
	}
	return result, err
}

// State exposes the current breaker state for health/metrics reporting.
func (b *CircuitBreaker) State() gobreaker.State { return b.cb.State() }
