// Package postgres implements internal/store.Store against PostgreSQL,
// optionally with pgvector for native similarity search.
package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/observability"
)

// DB owns the primary connection pool plus a round-robin, fail-over-aware
// pool of read replicas, mirroring the teacher's pool-configuration
// convention (internal/database.Database) but with replica routing added
// per spec.md §5's "Resource sharing" requirement.
type DB struct {
	primary  *sqlx.DB
	replicas []*sqlx.DB
	rrCursor uint64
	logger   observability.Logger
}

// Open connects to the primary and every configured read replica, applying
// the same pool-shape settings to each.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger observability.Logger) (*DB, error) {
	primary, err := connect(ctx, cfg.URL, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect primary: %w", err)
	}

	replicas := make([]*sqlx.DB, 0, len(cfg.ReadReplicaURLs))
	for _, url := range cfg.ReadReplicaURLs {
		replica, err := connect(ctx, url, cfg)
		if err != nil {
			logger.Warn("read replica unavailable at startup, will fall back to primary", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		replicas = append(replicas, replica)
	}

	return &DB{primary: primary, replicas: replicas, logger: logger}, nil
}

func connect(ctx context.Context, url string, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.PoolRecycle)
	return db, nil
}

// Writer returns the primary pool; every mutating query goes through it.
func (d *DB) Writer() *sqlx.DB { return d.primary }

// Reader returns a read pool, round-robining across healthy replicas and
// falling back to the primary when none are configured or the chosen
// replica is unreachable.
func (d *DB) Reader(ctx context.Context) *sqlx.DB {
	if len(d.replicas) == 0 {
		return d.primary
	}
	idx := atomic.AddUint64(&d.rrCursor, 1) % uint64(len(d.replicas))
	candidate := d.replicas[idx]
	pingCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	if err := candidate.PingContext(pingCtx); err != nil {
		d.logger.Warn("read replica ping failed, falling back to primary", map[string]interface{}{
			"error": err.Error(),
		})
		return d.primary
	}
	return candidate
}

// Close closes the primary and every replica connection.
func (d *DB) Close() error {
	var firstErr error
	if err := d.primary.Close(); err != nil {
		firstErr = err
	}
	for _, r := range d.replicas {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ping checks primary connectivity, used by the health handler.
func (d *DB) Ping(ctx context.Context) error {
	return d.primary.PingContext(ctx)
}
