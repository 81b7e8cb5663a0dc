package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/convomesh/memoryd/internal/resilience"
)

// RemoteProvider calls a configurable HTTP embeddings endpoint, grounded in
// the teacher's pkg/embedding/providers.OpenAIProvider request/response
// shape, generalized to an arbitrary single-endpoint JSON contract. Outbound
// calls are paced with golang.org/x/time/rate (a token bucket is the right
// shape for "don't exceed N requests/sec to one upstream", unlike the
// strict per-window admission limiter in internal/resilience).
type RemoteProvider struct {
	url        string
	dimensions int
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewRemoteProvider builds a RemoteProvider. requestsPerSecond <= 0 disables
// client-side pacing.
func NewRemoteProvider(url string, dimensions int, requestsPerSecond float64, timeout time.Duration) *RemoteProvider {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &RemoteProvider{
		url:        url,
		dimensions: dimensions,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		retry:      resilience.RemoteEmbeddingRetryConfig(isTransient),
	}
}

type remoteRequest struct {
	Text       string `json:"text"`
	Dimensions int    `json:"dimensions"`
}

type remoteResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed retries transient failures per spec.md §4.2 (<=3 attempts, 1s-5s
// exponential backoff) and paces outbound calls through the token bucket.
func (p *RemoteProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var out []float32
	err := resilience.Retry(ctx, p.retry, func() error {
		vec, err := p.call(ctx, text)
		if err != nil {
			return err
		}
		out = vec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resize(out, p.dimensions), nil
}

func (p *RemoteProvider) call(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(remoteRequest{Text: text, Dimensions: p.dimensions})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, &transientError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 500 {
		data, _ := io.ReadAll(resp.Body)
		return nil, &transientError{err: fmt.Errorf("remote embedding provider %d: %s", resp.StatusCode, string(data))}
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote embedding provider %d: %s", resp.StatusCode, string(data))
	}

	var parsed remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	return parsed.Embedding, nil
}

// Dimensions reports the configured vector length.
func (p *RemoteProvider) Dimensions() int { return p.dimensions }

// transientError marks network/5xx failures as retryable.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func isTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}
