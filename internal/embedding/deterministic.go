package embedding

import (
	"context"
	"hash/fnv"
	"math/rand"
)

// DeterministicProvider hash-seeds a PRNG from the input text, so the same
// text always maps to the same vector and the call never fails. It backs
// both `embedding_provider=mock` and the CircuitBreakerProvider's fallback.
type DeterministicProvider struct {
	dimensions int
}

// NewDeterministicProvider builds a DeterministicProvider producing vectors
// of the given dimensionality.
func NewDeterministicProvider(dimensions int) *DeterministicProvider {
	return &DeterministicProvider{dimensions: dimensions}
}

// Embed returns a vector seeded by the FNV-1a hash of text.
func (p *DeterministicProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, p.dimensions)
	for i := range vec {
		vec[i] = rng.Float32()*2 - 1
	}
	return vec, nil
}

// Dimensions reports the configured vector length.
func (p *DeterministicProvider) Dimensions() int { return p.dimensions }
