// Package cache implements the two-tier ResultCache: an in-process L1
// (hashicorp/golang-lru/v2/expirable) backed by an optional Redis L2
// (go-redis/v8), grounded in the teacher's internal/cache.MultiLevelCache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/convomesh/memoryd/internal/observability"
)

// ErrNotFound marks a cache miss, mirroring the teacher's Cache.ErrNotFound.
var ErrNotFound = errors.New("cache: not found")

// ResultCache is the read-through cache shared by MessageService, covering
// both the search-result and embedding-vector key families (spec.md §4.4).
type ResultCache interface {
	Get(ctx context.Context, key string, value interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// TwoTierCache layers an in-process bounded+TTL L1 over an optional Redis L2.
type TwoTierCache struct {
	l1      *expirable.LRU[string, []byte]
	l2      *redis.Client // nil disables L2
	metrics observability.MetricsClient
	logger  observability.Logger
}

// New builds a TwoTierCache. redisAddr == "" disables L2 entirely.
func New(maxItems int, defaultTTL time.Duration, redisAddr string, metrics observability.MetricsClient, logger observability.Logger) *TwoTierCache {
	if maxItems <= 0 {
		maxItems = 2000
	}
	l1 := expirable.NewLRU[string, []byte](maxItems, nil, defaultTTL)

	var l2 *redis.Client
	if redisAddr != "" {
		l2 = redis.NewClient(&redis.Options{Addr: redisAddr})
	}

	return &TwoTierCache{l1: l1, l2: l2, metrics: metrics, logger: logger}
}

// Get checks L1 then L2, promoting an L2 hit back into L1.
func (c *TwoTierCache) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	start := time.Now()
	if data, ok := c.l1.Get(key); ok {
		c.record("get", "l1_hit", start)
		return true, json.Unmarshal(data, value)
	}

	if c.l2 == nil {
		c.record("get", "miss", start)
		return false, nil
	}

	data, err := c.l2.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record("get", "miss", start)
		return false, nil
	}
	if err != nil {
		c.record("get", "error", start)
		return false, fmt.Errorf("cache: l2 get: %w", err)
	}

	c.l1.Add(key, data)
	c.record("get", "l2_hit", start)
	return true, json.Unmarshal(data, value)
}

// Set writes to L1 and, if configured, L2.
func (c *TwoTierCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	start := time.Now()
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal: %w", err)
	}

	c.l1.Add(key, data)

	if c.l2 != nil {
		if err := c.l2.Set(ctx, key, data, ttl).Err(); err != nil {
			c.record("set", "l2_error", start)
			return fmt.Errorf("cache: l2 set: %w", err)
		}
	}
	c.record("set", "ok", start)
	return nil
}

// DeletePrefix removes every key starting with prefix from both tiers. L1
// is bounded and in-memory so a full key scan is cheap; L2 uses SCAN+UNLINK
// to avoid blocking Redis on a large keyspace.
func (c *TwoTierCache) DeletePrefix(ctx context.Context, prefix string) error {
	for _, k := range c.l1.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.l1.Remove(k)
		}
	}

	if c.l2 == nil {
		return nil
	}

	var cursor uint64
	for {
		keys, next, err := c.l2.Scan(ctx, cursor, prefix+"*", 200).Result()
		if err != nil {
			return fmt.Errorf("cache: l2 scan: %w", err)
		}
		if len(keys) > 0 {
			if err := c.l2.Unlink(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cache: l2 unlink: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return nil
}

// Close releases the L2 client, if any.
func (c *TwoTierCache) Close() error {
	if c.l2 == nil {
		return nil
	}
	return c.l2.Close()
}

func (c *TwoTierCache) record(op, outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.ObserveLatency("cache_"+op+"_duration_seconds", map[string]string{"outcome": outcome}, time.Since(start).Seconds())
}

// SearchKey builds the "search:{tenant}:{conversation|'*'}:sha256(...)" key
// family from spec.md §4.4.
func SearchKey(tenant, conversation string, topK, candidateLimit int, query string) string {
	conv := conversation
	if conv == "" {
		conv = "*"
	}
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d|%s", tenant, conversation, topK, candidateLimit, query)))
	return fmt.Sprintf("search:%s:%s:%s", tenant, conv, hex.EncodeToString(h[:]))
}

// SearchPrefix builds the invalidation prefix for a (tenant, conversation) pair.
func SearchPrefix(tenant, conversation string) string {
	conv := conversation
	if conv == "" {
		conv = "*"
	}
	return fmt.Sprintf("search:%s:%s:", tenant, conv)
}

// EmbeddingKey builds the "embedding:sha256(text)" key family.
func EmbeddingKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s", hex.EncodeToString(h[:]))
}
