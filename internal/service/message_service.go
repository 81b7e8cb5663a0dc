// Package service orchestrates ingest and retrieval: the read/write path
// that sits between the HTTP shell and the Store/Provider/Cache primitives,
// ported from original_source/.../services/message_service.py.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/embedding"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/rank"
	"github.com/convomesh/memoryd/internal/store"
)

// Config carries the ingest/retrieval knobs from config.Config that the
// service needs at call time.
type Config struct {
	AsyncEmbeddings bool
	MaxResults      int
	SearchTTL       time.Duration
	EmbeddingTTL    time.Duration
	Weights         rank.Weights
}

// MessageService is the ingest/retrieve/fetch orchestrator. Every dependency
// is injected, per the teacher's Design Notes mandate to replace package
// globals with an explicit struct.
type MessageService struct {
	store    store.Store
	embedder embedding.Provider
	cache    cache.ResultCache
	cfg      Config
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// New builds a MessageService.
func New(st store.Store, embedder embedding.Provider, resultCache cache.ResultCache, cfg Config, logger observability.Logger, metrics observability.MetricsClient) *MessageService {
	return &MessageService{store: st, embedder: embedder, cache: resultCache, cfg: cfg, logger: logger, metrics: metrics}
}

// IngestRequest is the sanitised, validated payload for a new message.
type IngestRequest struct {
	TenantID           string
	ConversationID     string
	Role               store.Role
	Content            string
	Metadata           store.Metadata
	ImportanceOverride *float64
}

// Ingest persists the message and, depending on cfg.AsyncEmbeddings, either
// embeds it synchronously or enqueues a durable job, per spec.md §4.5.
// The returned bool is true when embedding is still pending (HTTP 202).
func (s *MessageService) Ingest(ctx context.Context, req IngestRequest) (*store.Message, bool, error) {
	start := time.Now()
	mode := "sync"
	if s.cfg.AsyncEmbeddings {
		mode = "async"
	}
	defer func() {
		s.metrics.ObserveLatency("ingest_duration_seconds", map[string]string{"mode": mode}, time.Since(start).Seconds())
	}()

	now := time.Now().UTC()
	importance := req.ImportanceOverride
	if importance == nil {
		v := scoreImportance(now, now, req.Role)
		importance = &v
	} else {
		v := clamp01(*importance)
		importance = &v
	}

	msg := &store.Message{
		ID:              uuid.NewString(),
		TenantID:        req.TenantID,
		ConversationID:  req.ConversationID,
		Role:            req.Role,
		Content:         req.Content,
		Metadata:        req.Metadata,
		ImportanceScore: importance,
		EmbeddingStatus: store.EmbeddingPending,
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, false, err
	}

	created, err := s.store.CreateMessage(ctx, tx, msg)
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}

	if s.cfg.AsyncEmbeddings {
		if _, err := s.store.EnqueueEmbeddingJob(ctx, tx, created.ID); err != nil {
			_ = tx.Rollback()
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, err
		}
		s.metrics.IncrCounter("ingest_total", map[string]string{"mode": "async"})
		return created, true, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	finalised, err := s.ApplyEmbedding(ctx, created.ID, created.Content, created.ImportanceScore)
	if err != nil {
		return nil, false, err
	}

	s.invalidateSearchCache(ctx, req.TenantID, req.ConversationID)
	s.metrics.IncrCounter("ingest_total", map[string]string{"mode": "sync"})
	return finalised, false, nil
}

// ApplyEmbedding calls the provider and persists the outcome on the given
// message, in its own transaction. It is shared by the synchronous ingest
// path and the job queue's per-job processing, mirroring
// message_service.py's shared `_apply_embedding`.
func (s *MessageService) ApplyEmbedding(ctx context.Context, messageID, content string, importance *float64) (*store.Message, error) {
	vec, err := s.embedder.Embed(ctx, content)
	status := store.EmbeddingCompleted
	if err != nil {
		s.logger.Warn("embedding failed", map[string]interface{}{"message_id": messageID, "error": err.Error()})
		vec = nil
		status = store.EmbeddingFailed
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateMessageEmbedding(ctx, tx, messageID, vec, importance, status)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// RetrieveParams is the sanitised search request.
type RetrieveParams struct {
	TenantID       string
	ConversationID string
	Query          string
	TopK           int
	CandidateLimit int
	ImportanceMin  *float64
}

// RetrieveResult is the cached, JSON-serialisable response shape.
type RetrieveResult struct {
	Items []rank.Scored `json:"items"`
	Total int           `json:"total"`
}

// Retrieve consults the search cache, otherwise embeds the query, loads
// candidates, ranks them, and caches the response, per spec.md §4.5.
func (s *MessageService) Retrieve(ctx context.Context, params RetrieveParams) (*RetrieveResult, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveLatency("retrieve_duration_seconds", nil, time.Since(start).Seconds())
	}()

	topK := params.TopK
	if topK > s.cfg.MaxResults {
		topK = s.cfg.MaxResults
	}
	candidateLimit := params.CandidateLimit
	if max := s.cfg.MaxResults * 10; candidateLimit > max {
		candidateLimit = max
	}

	searchKey := cache.SearchKey(params.TenantID, params.ConversationID, topK, candidateLimit, params.Query)

	var cached RetrieveResult
	if found, err := s.cache.Get(ctx, searchKey, &cached); err == nil && found {
		s.metrics.IncrCounter("retrieve_total", map[string]string{"cache": "hit"})
		return &cached, nil
	}

	queryVec, err := s.embedQuery(ctx, params.Query)
	if err != nil {
		return nil, err
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	candidates, err := s.store.ListActiveMessages(ctx, tx, params.TenantID, store.ListFilter{
		Conversation:  params.ConversationID,
		ImportanceMin: params.ImportanceMin,
		Limit:         candidateLimit,
	})
	if err != nil {
		return nil, err
	}

	scored := rank.Rank(queryVec, candidates, topK, s.cfg.Weights, time.Now().UTC())
	result := &RetrieveResult{Items: scored, Total: len(scored)}

	if err := s.cache.Set(ctx, searchKey, result, s.cfg.SearchTTL); err != nil {
		s.logger.Warn("search cache write failed", map[string]interface{}{"error": err.Error()})
	}
	s.metrics.IncrCounter("retrieve_total", map[string]string{"cache": "miss"})
	return result, nil
}

// embedQuery embeds params.Query, consulting the embedding cache first.
func (s *MessageService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	key := cache.EmbeddingKey(query)
	var vec []float32
	if found, err := s.cache.Get(ctx, key, &vec); err == nil && found {
		return vec, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, vec, s.cfg.EmbeddingTTL); err != nil {
		s.logger.Warn("embedding cache write failed", map[string]interface{}{"error": err.Error()})
	}
	return vec, nil
}

// Fetch returns the message, or (nil, nil) when absent.
func (s *MessageService) Fetch(ctx context.Context, tenantID, id string) (*store.Message, error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	msg, err := s.store.GetMessage(ctx, tx, tenantID, id)
	if errors.Is(err, apperr.ErrNoRows) {
		return nil, nil
	}
	return msg, err
}

func (s *MessageService) invalidateSearchCache(ctx context.Context, tenantID, conversationID string) {
	if err := s.cache.DeletePrefix(ctx, cache.SearchPrefix(tenantID, conversationID)); err != nil {
		s.logger.Warn("search cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}
