package store

import "context"

// Tx is an open transactional handle. It carries no ambient context of its
// own — callers obtain one from Store.Begin and pass it explicitly through
// every multi-step workflow, matching the "no ambient session" redesign
// the original Design Notes call for.
type Tx interface {
	Commit() error
	Rollback() error
}

// ListFilter narrows list_active_messages/search_similar.
type ListFilter struct {
	Conversation   string // empty means "any conversation"
	ImportanceMin  *float64
	Limit          int
}

// Store is the single transactional surface over every persisted entity.
// Every method accepts the caller's Tx so multi-step workflows (ingest,
// job processing, retention) remain atomic; Store itself owns no state
// beyond a connection pool.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	CreateMessage(ctx context.Context, tx Tx, m *Message) (*Message, error)
	GetMessage(ctx context.Context, tx Tx, tenantID, id string) (*Message, error)
	// GetMessageByID loads a message without a tenant filter, for callers
	// (the embedding job queue) that only hold a message ID.
	GetMessageByID(ctx context.Context, tx Tx, id string) (*Message, error)
	UpdateMessageEmbedding(ctx context.Context, tx Tx, id string, embedding []float32, importance *float64, status EmbeddingStatus) (*Message, error)
	ListActiveMessages(ctx context.Context, tx Tx, tenantID string, filter ListFilter) ([]*Message, error)
	// SearchSimilar returns apperr.ErrVectorSearchUnsupported when the
	// backing store has no native vector distance operator.
	SearchSimilar(ctx context.Context, tx Tx, tenantID string, filter ListFilter, queryVec []float32) ([]*Message, error)

	EnqueueEmbeddingJob(ctx context.Context, tx Tx, messageID string) (*EmbeddingJob, error)
	ClaimEmbeddingJobs(ctx context.Context, tx Tx, limit, maxAttempts int, retryBackoffSeconds float64) ([]*EmbeddingJob, error)
	UpdateEmbeddingJob(ctx context.Context, tx Tx, jobID string, status JobStatus, lastErr *string) error
	ReclaimStuckJobs(ctx context.Context, tx Tx, stuckTimeoutSeconds float64) (int, error)

	UpsertRetentionPolicy(ctx context.Context, tx Tx, p *RetentionPolicy) error
	LoadPolicy(ctx context.Context, tx Tx, tenantID string) (*RetentionPolicy, error)

	ListRetentionRules(ctx context.Context, tx Tx, tenantID string) ([]*RetentionRule, error)
	UpsertRetentionRule(ctx context.Context, tx Tx, r *RetentionRule) (*RetentionRule, error)
	MarkRuleApplied(ctx context.Context, tx Tx, ruleID string) error

	ArchiveCandidates(ctx context.Context, tx Tx, tenantID string, olderThanDays int, importanceThreshold float64) ([]*Message, error)
	CandidatesForRule(ctx context.Context, tx Tx, tenantID string, rule *RetentionRule, maxItems int) ([]*Message, error)
	MoveToArchive(ctx context.Context, tx Tx, messages []*Message, reason string) (int, error)
	DeleteArchived(ctx context.Context, tx Tx, tenantID string, olderThanDays int) (int, error)
	HardDelete(ctx context.Context, tx Tx, messages []*Message) (int, error)

	ListTenants(ctx context.Context, tx Tx) ([]string, error)
}
