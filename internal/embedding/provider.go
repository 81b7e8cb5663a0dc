// Package embedding implements the text -> vector provider hierarchy:
// Deterministic, Local, and Remote providers behind one interface, composed
// with a circuit breaker so ingest never blocks on a provider outage.
// Grounded in the teacher's pkg/embedding/providers.Provider shape, trimmed
// to the single Embed operation spec.md calls for.
package embedding

import "context"

// Provider maps text to a fixed-dimension vector. Implementations pad or
// truncate to exactly Dimensions() before returning, per spec.md §4.2.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// resize pads with zeros or truncates v to exactly d dimensions.
func resize(v []float32, d int) []float32 {
	if len(v) == d {
		return v
	}
	out := make([]float32, d)
	copy(out, v)
	return out
}
