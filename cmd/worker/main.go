// Command worker runs the durable embedding job queue standalone, so
// ingestion and embedding can scale independently, per spec.md §4.6.
// Grounded in the teacher's apps/worker/cmd/worker bootstrap: load
// config, connect, start one controller goroutine, wait on signal.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/embedding"
	"github.com/convomesh/memoryd/internal/jobqueue"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/rank"
	"github.com/convomesh/memoryd/internal/service"
	"github.com/convomesh/memoryd/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger("memoryd-worker", cfg.Observability.LogFormat)
	metrics := observability.NewPrometheusMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", map[string]interface{}{"error": err.Error()})
		}
	}()

	repo := postgres.NewRepository(db, cfg.Embedding.VectorBackend, logger)
	resultCache := cache.New(cfg.Cache.MaxItems, cfg.Cache.SearchTTL, cfg.Cache.RedisAddress, metrics, logger)

	embedder, err := embedding.New(cfg.Embedding, cfg.Circuit, logger, metrics)
	if err != nil {
		log.Fatalf("failed to build embedding provider: %v", err)
	}

	messages := service.New(repo, embedder, resultCache, service.Config{
		AsyncEmbeddings: true,
		MaxResults:      cfg.Retrieval.MaxResults,
		SearchTTL:       cfg.Cache.SearchTTL,
		EmbeddingTTL:    cfg.Cache.EmbeddingTTL,
		Weights:         rank.DefaultWeights(),
	}, logger, metrics)

	queue := jobqueue.New(repo, messages, resultCache, jobqueue.Config{
		PollInterval: cfg.Embedding.JobPollInterval,
		BatchSize:    cfg.Embedding.JobBatchSize,
		MaxAttempts:  cfg.Embedding.JobMaxAttempts,
		RetryBackoff: cfg.Embedding.JobRetryBackoff,
		StuckTimeout: cfg.Embedding.JobStuckTimeout,
	}, logger, metrics)

	queue.Start(ctx)
	logger.Info("memoryd worker started", nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal", nil)

	queue.Stop()
	cancel()
	logger.Info("memoryd worker stopped", nil)
}
