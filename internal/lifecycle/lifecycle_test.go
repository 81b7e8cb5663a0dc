package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/store"
)

type noopTx struct{}

func (noopTx) Commit() error   { return nil }
func (noopTx) Rollback() error { return nil }

// fakeStore is a minimal store.Store double covering what Engine exercises.
type fakeStore struct {
	policy         *store.RetentionPolicy
	rules          []*store.RetentionRule
	candidates     map[string][]*store.Message // rule name -> candidates
	archived       []string
	deleted        []string
	markedApplied  []string
	archiveCalls   int
	deleteCalls    int
	upsertedPolicy *store.RetentionPolicy
	lastMaxItems   int
}

func (f *fakeStore) Begin(ctx context.Context) (store.Tx, error) { return noopTx{}, nil }

func (f *fakeStore) LoadPolicy(ctx context.Context, tx store.Tx, tenantID string) (*store.RetentionPolicy, error) {
	if f.policy == nil {
		return nil, apperr.ErrNoRows
	}
	return f.policy, nil
}

func (f *fakeStore) ListRetentionRules(ctx context.Context, tx store.Tx, tenantID string) ([]*store.RetentionRule, error) {
	return f.rules, nil
}

func (f *fakeStore) MarkRuleApplied(ctx context.Context, tx store.Tx, ruleID string) error {
	f.markedApplied = append(f.markedApplied, ruleID)
	return nil
}

func (f *fakeStore) CandidatesForRule(ctx context.Context, tx store.Tx, tenantID string, rule *store.RetentionRule, maxItems int) ([]*store.Message, error) {
	f.lastMaxItems = maxItems
	return f.candidates[rule.Name], nil
}

func (f *fakeStore) MoveToArchive(ctx context.Context, tx store.Tx, messages []*store.Message, reason string) (int, error) {
	f.archiveCalls++
	for range messages {
		f.archived = append(f.archived, reason)
	}
	return len(messages), nil
}

func (f *fakeStore) HardDelete(ctx context.Context, tx store.Tx, messages []*store.Message) (int, error) {
	f.deleteCalls++
	for range messages {
		f.deleted = append(f.deleted, "deleted")
	}
	return len(messages), nil
}

func (f *fakeStore) ArchiveCandidates(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int, importanceThreshold float64) ([]*store.Message, error) {
	return f.candidates["default_policy"], nil
}

func (f *fakeStore) DeleteArchived(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int) (int, error) {
	return len(f.candidates["deleted_archived"]), nil
}

func (f *fakeStore) ListTenants(ctx context.Context, tx store.Tx) ([]string, error) {
	return []string{"t1", "t2"}, nil
}

// unused Store methods
func (f *fakeStore) CreateMessage(ctx context.Context, tx store.Tx, m *store.Message) (*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) GetMessage(ctx context.Context, tx store.Tx, tenantID, id string) (*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) GetMessageByID(ctx context.Context, tx store.Tx, id string) (*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) UpdateMessageEmbedding(ctx context.Context, tx store.Tx, id string, vec []float32, importance *float64, status store.EmbeddingStatus) (*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) ListActiveMessages(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter) ([]*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) SearchSimilar(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter, queryVec []float32) ([]*store.Message, error) {
	panic("not used")
}
func (f *fakeStore) EnqueueEmbeddingJob(ctx context.Context, tx store.Tx, messageID string) (*store.EmbeddingJob, error) {
	panic("not used")
}
func (f *fakeStore) ClaimEmbeddingJobs(ctx context.Context, tx store.Tx, limit, maxAttempts int, retryBackoffSeconds float64) ([]*store.EmbeddingJob, error) {
	panic("not used")
}
func (f *fakeStore) UpdateEmbeddingJob(ctx context.Context, tx store.Tx, jobID string, status store.JobStatus, lastErr *string) error {
	panic("not used")
}
func (f *fakeStore) ReclaimStuckJobs(ctx context.Context, tx store.Tx, stuckTimeoutSeconds float64) (int, error) {
	panic("not used")
}
func (f *fakeStore) UpsertRetentionPolicy(ctx context.Context, tx store.Tx, p *store.RetentionPolicy) error {
	f.upsertedPolicy = p
	return nil
}
func (f *fakeStore) UpsertRetentionRule(ctx context.Context, tx store.Tx, r *store.RetentionRule) (*store.RetentionRule, error) {
	panic("not used")
}

var testRetentionConfig = config.RetentionConfig{
	MaxAgeDays:          30,
	ImportanceThreshold: 0.35,
	DeleteAfterDays:     90,
}

func newTestEngine(st *fakeStore) *Engine {
	c := cache.New(100, 0, "", observability.NewNoopMetrics(), observability.NewNoopLogger())
	return New(st, c, testRetentionConfig, observability.NewNoopLogger(), observability.NewNoopMetrics())
}

func msgs(n int) []*store.Message {
	out := make([]*store.Message, n)
	for i := range out {
		out[i] = &store.Message{ID: "m"}
	}
	return out
}

func TestApply_NoRulesFallsBackToDefaultPolicy(t *testing.T) {
	st := &fakeStore{
		policy:     &store.RetentionPolicy{TenantID: "t1", MaxAgeDays: 30, DeleteAfterDays: 90},
		candidates: map[string][]*store.Message{"default_policy": msgs(3)},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.MessagesArchived)
	assert.Empty(t, result.RulesApplied)
	assert.Equal(t, 1, st.archiveCalls)
}

func TestApply_EnabledRulesTakePrecedenceOverPolicy(t *testing.T) {
	st := &fakeStore{
		policy: &store.RetentionPolicy{TenantID: "t1", MaxAgeDays: 30},
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "archive_old", RuleType: store.RuleAge, Action: store.ActionArchive, Priority: 1, Enabled: true},
		},
		candidates: map[string][]*store.Message{
			"archive_old":    msgs(2),
			"default_policy": msgs(99), // must NOT be touched
		},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MessagesArchived)
	assert.Equal(t, []string{"archive_old"}, result.RulesApplied)
	assert.Equal(t, []string{"r1"}, st.markedApplied)
}

func TestApply_DisabledRulesAreSkipped(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "disabled_rule", RuleType: store.RuleAge, Action: store.ActionArchive, Enabled: false},
		},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Empty(t, result.RulesApplied)
	assert.Equal(t, 0, st.archiveCalls)
}

func TestApply_DryRunComputesCountsWithoutMutating(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "delete_rule", RuleType: store.RuleAge, Action: store.ActionDelete, Enabled: true},
		},
		candidates: map[string][]*store.Message{"delete_rule": msgs(5)},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, true)
	require.NoError(t, err)
	assert.Equal(t, 5, result.MessagesDeleted)
	assert.True(t, result.DryRun)
	assert.Equal(t, 0, st.deleteCalls)
	assert.Empty(t, st.markedApplied)
}

func TestApply_ColdActionRoutesThroughArchiveWithPrefixedReason(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "cold_rule", RuleType: store.RuleAge, Action: store.ActionCold, Enabled: true},
		},
		candidates: map[string][]*store.Message{"cold_rule": msgs(1)},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", []string{"cold"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessagesMovedToCold)
	require.Len(t, st.archived, 1)
	assert.Equal(t, "cold_storage:cold_rule", st.archived[0])
}

func TestApply_ColdActionOmittedFromDefaultActionsIsSkipped(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "cold_rule", RuleType: store.RuleAge, Action: store.ActionCold, Enabled: true},
		},
		candidates: map[string][]*store.Message{"cold_rule": msgs(1)},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MessagesMovedToCold)
	assert.Empty(t, result.RulesApplied)
	assert.Empty(t, st.markedApplied)
}

func TestApply_RequestedActionsGateRuleExecution(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "archive_rule", RuleType: store.RuleAge, Action: store.ActionArchive, Enabled: true},
			{ID: "r2", Name: "delete_rule", RuleType: store.RuleAge, Action: store.ActionDelete, Enabled: true},
		},
		candidates: map[string][]*store.Message{
			"archive_rule": msgs(2),
			"delete_rule":  msgs(4),
		},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", []string{"archive"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.MessagesArchived)
	assert.Equal(t, 0, result.MessagesDeleted)
	assert.Equal(t, []string{"archive_rule"}, result.RulesApplied)
	assert.Equal(t, []string{"r1"}, st.markedApplied)
}

func TestApply_RequestedActionsGateDefaultPolicy(t *testing.T) {
	st := &fakeStore{
		policy: &store.RetentionPolicy{TenantID: "t1", MaxAgeDays: 30, DeleteAfterDays: 90},
		candidates: map[string][]*store.Message{
			"default_policy":   msgs(3),
			"deleted_archived": msgs(7),
		},
	}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", []string{"archive"}, false)
	require.NoError(t, err)
	assert.Equal(t, 3, result.MessagesArchived)
	assert.Equal(t, 0, result.MessagesDeleted)
	assert.Equal(t, 1, st.archiveCalls)
}

func TestApply_MaxItemsConditionExtracted(t *testing.T) {
	st := &fakeStore{
		rules: []*store.RetentionRule{
			{ID: "r1", Name: "cap_rule", RuleType: store.RuleMaxItems, Action: store.ActionArchive, Enabled: true,
				Conditions: store.Metadata{"max_items": float64(50)}},
		},
	}
	// the fake's CandidatesForRule records the maxItems it was handed
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"cap_rule"}, result.RulesApplied)
	assert.Equal(t, 50, st.lastMaxItems)
}

func TestApply_NoPolicyNoRulesMaterialisesDefaultPolicy(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MessagesArchived)
	assert.Equal(t, 0, result.MessagesDeleted)

	require.NotNil(t, st.upsertedPolicy)
	assert.Equal(t, "t1", st.upsertedPolicy.TenantID)
	assert.Equal(t, testRetentionConfig.MaxAgeDays, st.upsertedPolicy.MaxAgeDays)
	assert.Equal(t, testRetentionConfig.ImportanceThreshold, st.upsertedPolicy.ImportanceThreshold)
	assert.Equal(t, testRetentionConfig.DeleteAfterDays, st.upsertedPolicy.DeleteAfterDays)
}

func TestApply_DryRunMaterialisesPolicyWithinRolledBackTx(t *testing.T) {
	st := &fakeStore{}
	e := newTestEngine(st)

	result, err := e.Apply(context.Background(), "t1", nil, true)
	require.NoError(t, err)
	assert.True(t, result.DryRun)

	// UpsertRetentionPolicy runs against the transaction like any other
	// mutation in this path; Apply rolls that transaction back instead of
	// committing it because dryRun is true, so nothing durable changes.
	require.NotNil(t, st.upsertedPolicy)
}
