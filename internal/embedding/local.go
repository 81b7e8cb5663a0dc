package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// LocalProvider is a CPU-only, no-network embedding: a hashed bag-of-words
// projection ("the hashing trick"), common as a cheap local fallback when no
// remote embedding service is configured. Each token hashes into one of
// Dimensions() buckets and accumulates a signed term weight; the result is
// L2-normalized so cosine similarity behaves sanely.
type LocalProvider struct {
	dimensions int
}

// NewLocalProvider builds a LocalProvider producing vectors of the given
// dimensionality.
func NewLocalProvider(dimensions int) *LocalProvider {
	return &LocalProvider{dimensions: dimensions}
}

// Embed tokenizes text on whitespace, hashes each token into a bucket, and
// returns the normalized bucket vector.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float64, p.dimensions)
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		bucket := int(h.Sum32()) % p.dimensions
		if bucket < 0 {
			bucket += p.dimensions
		}
		sign := 1.0
		if h.Sum32()%2 == 0 {
			sign = -1.0
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, p.dimensions)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

// Dimensions reports the configured vector length.
func (p *LocalProvider) Dimensions() int { return p.dimensions }
