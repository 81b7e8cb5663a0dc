package embedding

import (
	"fmt"

	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/resilience"
)

// New builds the configured provider, wrapped in a CircuitBreakerProvider
// unless cfg.Provider is already "mock" (the deterministic provider is its
// own fallback and gains nothing from a breaker), grounded in the teacher's
// pkg/embedding/factory.go provider-selection switch.
func New(cfg config.EmbeddingConfig, circuit config.CircuitConfig, logger observability.Logger, metrics observability.MetricsClient) (Provider, error) {
	var primary Provider
	switch cfg.Provider {
	case "mock", "":
		return NewDeterministicProvider(cfg.Dimensions), nil
	case "local":
		primary = NewLocalProvider(cfg.Dimensions)
	case "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("embedding: provider=remote requires remote_url")
		}
		primary = NewRemoteProvider(cfg.RemoteURL, cfg.Dimensions, cfg.RemoteRequestsPerSecond, cfg.RemoteTimeout)
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}

	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:              "embedding_provider",
		FailureThreshold:  circuit.FailureThreshold,
		RecoverySeconds:   circuit.RecoverySeconds,
		HalfOpenSuccesses: circuit.HalfOpenSuccesses,
	}, logger, metrics)

	return NewCircuitBreakerProvider(primary, breaker, logger), nil
}
