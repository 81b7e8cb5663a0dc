package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/store"
)

// fakeTx is a no-op store.Tx for the in-memory fake below; memoryStore
// applies every mutation immediately, so Commit/Rollback are bookkeeping
// only.
type fakeTx struct{}

func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

// memoryStore is a minimal in-memory store.Store used to exercise the HTTP
// handlers without a database, grounded in the same "fake the repository
// interface" approach the teacher uses for its service-layer unit tests.
type memoryStore struct {
	mu       sync.Mutex
	messages map[string]*store.Message
	rules    map[string][]*store.RetentionRule
	policies map[string]*store.RetentionPolicy
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		messages: map[string]*store.Message{},
		rules:    map[string][]*store.RetentionRule{},
		policies: map[string]*store.RetentionPolicy{},
	}
}

func (m *memoryStore) Begin(ctx context.Context) (store.Tx, error) { return fakeTx{}, nil }

func (m *memoryStore) CreateMessage(ctx context.Context, tx store.Tx, msg *store.Message) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	msg.CreatedAt, msg.UpdatedAt = now, now
	cp := *msg
	m.messages[msg.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryStore) GetMessage(ctx context.Context, tx store.Tx, tenantID, id string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.TenantID != tenantID {
		return nil, apperr.ErrNoRows
	}
	out := *msg
	return &out, nil
}

func (m *memoryStore) GetMessageByID(ctx context.Context, tx store.Tx, id string) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, apperr.ErrNoRows
	}
	out := *msg
	return &out, nil
}

func (m *memoryStore) UpdateMessageEmbedding(ctx context.Context, tx store.Tx, id string, embedding []float32, importance *float64, status store.EmbeddingStatus) (*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, apperr.ErrNoRows
	}
	msg.Embedding = embedding
	msg.ImportanceScore = importance
	msg.EmbeddingStatus = status
	msg.UpdatedAt = time.Now().UTC()
	out := *msg
	return &out, nil
}

func (m *memoryStore) ListActiveMessages(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*store.Message
	for _, msg := range m.messages {
		if msg.TenantID != tenantID || msg.Archived || msg.EmbeddingStatus != store.EmbeddingCompleted {
			continue
		}
		if filter.Conversation != "" && msg.ConversationID != filter.Conversation {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryStore) SearchSimilar(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter, queryVec []float32) ([]*store.Message, error) {
	return nil, apperr.ErrVectorSearchUnsupported
}

func (m *memoryStore) EnqueueEmbeddingJob(ctx context.Context, tx store.Tx, messageID string) (*store.EmbeddingJob, error) {
	return &store.EmbeddingJob{ID: uuid.NewString(), MessageID: messageID, Status: store.JobPending}, nil
}

func (m *memoryStore) ClaimEmbeddingJobs(ctx context.Context, tx store.Tx, limit, maxAttempts int, retryBackoffSeconds float64) ([]*store.EmbeddingJob, error) {
	return nil, nil
}

func (m *memoryStore) UpdateEmbeddingJob(ctx context.Context, tx store.Tx, jobID string, status store.JobStatus, lastErr *string) error {
	return nil
}

func (m *memoryStore) ReclaimStuckJobs(ctx context.Context, tx store.Tx, stuckTimeoutSeconds float64) (int, error) {
	return 0, nil
}

func (m *memoryStore) UpsertRetentionPolicy(ctx context.Context, tx store.Tx, p *store.RetentionPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.TenantID] = p
	return nil
}

func (m *memoryStore) LoadPolicy(ctx context.Context, tx store.Tx, tenantID string) (*store.RetentionPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[tenantID]
	if !ok {
		return nil, apperr.ErrNoRows
	}
	return p, nil
}

func (m *memoryStore) ListRetentionRules(ctx context.Context, tx store.Tx, tenantID string) ([]*store.RetentionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules[tenantID], nil
}

func (m *memoryStore) UpsertRetentionRule(ctx context.Context, tx store.Tx, rule *store.RetentionRule) (*store.RetentionRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	m.rules[rule.TenantID] = append(m.rules[rule.TenantID], rule)
	return rule, nil
}

func (m *memoryStore) MarkRuleApplied(ctx context.Context, tx store.Tx, ruleID string) error { return nil }

func (m *memoryStore) ArchiveCandidates(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int, importanceThreshold float64) ([]*store.Message, error) {
	return nil, nil
}

func (m *memoryStore) CandidatesForRule(ctx context.Context, tx store.Tx, tenantID string, rule *store.RetentionRule, maxItems int) ([]*store.Message, error) {
	return nil, nil
}

func (m *memoryStore) MoveToArchive(ctx context.Context, tx store.Tx, messages []*store.Message, reason string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		if existing, ok := m.messages[msg.ID]; ok {
			existing.Archived = true
		}
	}
	return len(messages), nil
}

func (m *memoryStore) DeleteArchived(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int) (int, error) {
	return 0, nil
}

func (m *memoryStore) HardDelete(ctx context.Context, tx store.Tx, messages []*store.Message) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		delete(m.messages, msg.ID)
	}
	return len(messages), nil
}

func (m *memoryStore) ListTenants(ctx context.Context, tx store.Tx) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, msg := range m.messages {
		if !seen[msg.TenantID] {
			seen[msg.TenantID] = true
			out = append(out, msg.TenantID)
		}
	}
	return out, nil
}
