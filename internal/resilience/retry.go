package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures exponential-backoff retries, grounded in
// pkg/adapters/resilience/retry.go's RetryConfig.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration
	RetryIfFn       func(error) bool
}

// RemoteEmbeddingRetryConfig matches spec.md §4.2's Remote provider policy:
// at most 3 attempts, exponential backoff base 1s, capped at 5s.
func RemoteEmbeddingRetryConfig(retryIf func(error) bool) RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 1 * time.Second,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  15 * time.Second,
		RetryIfFn:       retryIf,
	}
}

// Retry runs operation with exponential backoff, honoring ctx cancellation
// and cfg.RetryIfFn's decision to treat an error as permanent.
func Retry(ctx context.Context, cfg RetryConfig, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier
	b.MaxElapsedTime = cfg.MaxElapsedTime

	var bo backoff.BackOff = b
	if cfg.MaxRetries > 0 {
		bo = backoff.WithMaxRetries(b, uint64(cfg.MaxRetries))
	}
	bo = backoff.WithContext(bo, ctx)

	return backoff.Retry(func() error {
		err := operation()
		if err != nil && cfg.RetryIfFn != nil && !cfg.RetryIfFn(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}
