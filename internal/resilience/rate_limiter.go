package resilience

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SlidingWindowLimiter enforces "admitted request count <= limit over any
// window" (spec.md invariant 7). A token bucket (golang.org/x/time/rate)
// cannot express this — it allows bursts beyond the window boundary — so
// this keeps a bounded ring of admission timestamps per key instead;
// x/time/rate still gets a legitimate home pacing the Remote embedding
// provider (see internal/embedding).
type SlidingWindowLimiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	instances map[string][]time.Time
}

// ParseLimit parses strings of the form "N/{second|minute|hour}".
func ParseLimit(spec string) (limit int, window time.Duration, err error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("rate limit spec %q: expected N/unit", spec)
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("rate limit spec %q: %w", spec, err)
	}
	switch strings.TrimSpace(parts[1]) {
	case "second":
		window = time.Second
	case "minute":
		window = time.Minute
	case "hour":
		window = time.Hour
	default:
		return 0, 0, fmt.Errorf("rate limit spec %q: unknown unit", spec)
	}
	return n, window, nil
}

// NewSlidingWindowLimiter builds a limiter admitting at most limit requests
// per window, per key.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{limit: limit, window: window, instances: make(map[string][]time.Time)}
}

// NewSlidingWindowLimiterFromSpec parses "N/unit" and builds the limiter.
func NewSlidingWindowLimiterFromSpec(spec string) (*SlidingWindowLimiter, error) {
	limit, window, err := ParseLimit(spec)
	if err != nil {
		return nil, err
	}
	return NewSlidingWindowLimiter(limit, window), nil
}

// Allow reports whether key may admit one more request now, recording the
// admission if so.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	return l.AllowAt(key, time.Now())
}

// AllowAt is Allow with an injectable clock, for deterministic tests.
func (l *SlidingWindowLimiter) AllowAt(key string, now time.Time) bool {
	if l.limit <= 0 {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	times := l.instances[key]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= l.limit {
		l.instances[key] = kept
		return false
	}

	kept = append(kept, now)
	l.instances[key] = kept
	return true
}
