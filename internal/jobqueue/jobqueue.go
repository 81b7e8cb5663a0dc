// Package jobqueue implements the durable embedding worker: a single
// controller goroutine that claims EmbeddingJobs, runs them through the
// embedding provider, and commits the outcome, ported from
// original_source/.../services/job_queue.py's claim/process/commit loop.
package jobqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/service"
	"github.com/convomesh/memoryd/internal/store"
)

// Config carries the embedding-job tuning knobs from config.EmbeddingConfig.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBackoff time.Duration
	StuckTimeout time.Duration
}

// EmbeddingJobQueue is the long-running embedding worker. Lifecycle: Start
// spawns a single controller goroutine; Stop signals cancellation and joins.
type EmbeddingJobQueue struct {
	store   store.Store
	service *service.MessageService
	cache   cache.ResultCache
	cfg     Config
	logger  observability.Logger
	metrics observability.MetricsClient

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds an EmbeddingJobQueue.
func New(st store.Store, svc *service.MessageService, resultCache cache.ResultCache, cfg Config, logger observability.Logger, metrics observability.MetricsClient) *EmbeddingJobQueue {
	return &EmbeddingJobQueue{store: st, service: svc, cache: resultCache, cfg: cfg, logger: logger, metrics: metrics}
}

// Start spawns the controller goroutine. Calling Start twice is a no-op.
func (q *EmbeddingJobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.done = make(chan struct{})

	go func() {
		defer close(q.done)
		q.run(runCtx)
	}()
	q.logger.Info("embedding job queue started", nil)
}

// Stop signals cancellation and waits for the controller goroutine to exit.
func (q *EmbeddingJobQueue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	done := q.done
	q.cancel = nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	q.logger.Info("embedding job queue stopped", nil)
}

func (q *EmbeddingJobQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		processed, err := q.DrainOnce(ctx)
		if err != nil {
			q.logger.Error("embedding job queue cycle failed", map[string]interface{}{"error": err.Error()})
		}

		if processed > 0 {
			continue
		}

		timer := time.NewTimer(q.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// DrainOnce claims and processes one batch, returning how many jobs were
// handled. Exported so callers such as tests can step the queue
// synchronously.
func (q *EmbeddingJobQueue) DrainOnce(ctx context.Context) (int, error) {
	if _, err := q.reclaimStuck(ctx); err != nil {
		q.logger.Warn("reclaim stuck jobs failed", map[string]interface{}{"error": err.Error()})
	}

	jobs, err := q.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			q.process(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	return len(jobs), nil
}

func (q *EmbeddingJobQueue) reclaimStuck(ctx context.Context) (int, error) {
	tx, err := q.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	n, err := q.store.ReclaimStuckJobs(ctx, tx, q.cfg.StuckTimeout.Seconds())
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	return n, tx.Commit()
}

func (q *EmbeddingJobQueue) claim(ctx context.Context) ([]*store.EmbeddingJob, error) {
	tx, err := q.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	jobs, err := q.store.ClaimEmbeddingJobs(ctx, tx, q.cfg.BatchSize, q.cfg.MaxAttempts, q.cfg.RetryBackoff.Seconds())
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// process runs one job to completion: missing message -> failed with
// apperr.ErrJobMessageMissing's text as last_error; provider success -> Message+Job completed, cache
// invalidated; provider failure -> Job failed with last_error, eligible for
// retry per the backoff/max_attempts policy enforced by ClaimEmbeddingJobs.
func (q *EmbeddingJobQueue) process(ctx context.Context, job *store.EmbeddingJob) {
	start := time.Now()
	outcome := "completed"
	defer func() {
		q.metrics.ObserveLatency("job_duration_seconds", map[string]string{"outcome": outcome}, time.Since(start).Seconds())
		q.metrics.IncrCounter("job_processed_total", map[string]string{"outcome": outcome})
	}()

	msg, err := q.fetchMessage(ctx, job)
	if errors.Is(err, apperr.ErrNoRows) {
		outcome = "failed"
		reason := apperr.ErrJobMessageMissing.Error()
		q.finishJob(ctx, job.ID, store.JobFailed, &reason)
		return
	}
	if err != nil {
		outcome = "error"
		q.logger.Error("failed loading message for job", map[string]interface{}{"job_id": job.ID, "error": err.Error()})
		return
	}

	finalised, err := q.service.ApplyEmbedding(ctx, msg.ID, msg.Content, msg.ImportanceScore)
	if err != nil {
		outcome = "failed"
		errStr := err.Error()
		q.logger.Error("embedding job failed", map[string]interface{}{"job_id": job.ID, "error": errStr})
		q.finishJob(ctx, job.ID, store.JobFailed, &errStr)
		return
	}

	status := store.JobCompleted
	if finalised.EmbeddingStatus == store.EmbeddingFailed {
		status = store.JobFailed
		outcome = "failed"
		reason := "provider returned an error"
		q.finishJob(ctx, job.ID, status, &reason)
	} else {
		q.finishJob(ctx, job.ID, status, nil)
	}

	if err := q.cache.DeletePrefix(ctx, cache.SearchPrefix(finalised.TenantID, finalised.ConversationID)); err != nil {
		q.logger.Warn("search cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

func (q *EmbeddingJobQueue) fetchMessage(ctx context.Context, job *store.EmbeddingJob) (*store.Message, error) {
	tx, err := q.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	return q.store.GetMessageByID(ctx, tx, job.MessageID)
}

func (q *EmbeddingJobQueue) finishJob(ctx context.Context, jobID string, status store.JobStatus, lastErr *string) {
	tx, err := q.store.Begin(ctx)
	if err != nil {
		q.logger.Error("failed opening tx to finish job", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}
	if err := q.store.UpdateEmbeddingJob(ctx, tx, jobID, status, lastErr); err != nil {
		_ = tx.Rollback()
		q.logger.Error("failed updating job status", map[string]interface{}{"job_id": jobID, "error": err.Error()})
		return
	}
	if err := tx.Commit(); err != nil {
		q.logger.Error("failed committing job status", map[string]interface{}{"job_id": jobID, "error": err.Error()})
	}
}
