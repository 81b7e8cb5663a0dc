// Command server runs the memoryd HTTP API: ingest, search, retention
// control, and health, grounded in the teacher's apps/rest-api/cmd/api
// bootstrap (config load, database connect, engine wiring, graceful
// shutdown on SIGINT/SIGTERM).
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/convomesh/memoryd/internal/api"
	"github.com/convomesh/memoryd/internal/auth"
	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/embedding"
	"github.com/convomesh/memoryd/internal/jobqueue"
	"github.com/convomesh/memoryd/internal/lifecycle"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/rank"
	"github.com/convomesh/memoryd/internal/service"
	"github.com/convomesh/memoryd/internal/store/postgres"
)

var (
	version = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger("memoryd-server", cfg.Observability.LogFormat)
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

	if migrationsPath := os.Getenv("MEMORYD_MIGRATIONS_PATH"); migrationsPath != "" {
		if err := postgres.RunMigrations(db.Writer(), migrationsPath); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	repo := postgres.NewRepository(db, cfg.Embedding.VectorBackend, logger)

	resultCache := cache.New(cfg.Cache.MaxItems, cfg.Cache.SearchTTL, cfg.Cache.RedisAddress, metrics, logger)

	embedder, err := embedding.New(cfg.Embedding, cfg.Circuit, logger, metrics)
	if err != nil {
		log.Fatalf("failed to build embedding provider: %v", err)
	}

	svcCfg := service.Config{
		AsyncEmbeddings: cfg.Embedding.Async,
		MaxResults:      cfg.Retrieval.MaxResults,
		SearchTTL:       cfg.Cache.SearchTTL,
		EmbeddingTTL:    cfg.Cache.EmbeddingTTL,
		Weights:         rank.DefaultWeights(),
	}
	messages := service.New(repo, embedder, resultCache, svcCfg, logger, metrics)

	lifecycleEngine := lifecycle.New(repo, resultCache, cfg.Retention, logger, metrics)
	scheduler := lifecycle.NewScheduler(lifecycleEngine, repo, lifecycle.SchedulerConfig{
		Interval: cfg.Retention.ScheduleInterval,
		Tenants:  cfg.Retention.Tenants,
	}, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var jobQueue *jobqueue.EmbeddingJobQueue
	if cfg.Embedding.Async {
		jobQueue = jobqueue.New(repo, messages, resultCache, jobqueue.Config{
			PollInterval: cfg.Embedding.JobPollInterval,
			BatchSize:    cfg.Embedding.JobBatchSize,
			MaxAttempts:  cfg.Embedding.JobMaxAttempts,
			RetryBackoff: cfg.Embedding.JobRetryBackoff,
			StuckTimeout: cfg.Embedding.JobStuckTimeout,
		}, logger, metrics)
		jobQueue.Start(ctx)
		defer jobQueue.Stop()
	}

	handler := api.NewHandler(messages, lifecycleEngine, repo, embedder, db.Ping, cfg.Observability.Environment, version)

	var validator *auth.Validator
	if cfg.Server.JWTSecret != "" {
		validator = auth.NewValidator([]byte(cfg.Server.JWTSecret), cfg.Server.JWTIssuer)
	}

	router, err := api.NewRouter(handler, api.RouterConfig{
		RequestTimeout:  cfg.Server.RequestTimeout,
		RequestMaxBytes: cfg.Server.RequestMaxBytes,
		RateLimit:       cfg.RateLimit,
	}, metrics.Registry(), validator, logger, metrics)
	if err != nil {
		log.Fatalf("failed to build router: %v", err)
	}

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddress,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		logger.Info("memoryd server starting", map[string]interface{}{"address": cfg.Server.ListenAddress})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGraceSeconds)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", map[string]interface{}{"error": err.Error()})
	}
	cancel()
	logger.Info("memoryd server stopped", nil)
}
