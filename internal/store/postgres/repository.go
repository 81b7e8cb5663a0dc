package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/store"
)

// Repository is the sqlx/lib/pq implementation of store.Store, grounded in
// the teacher's internal/repository.EmbeddingRepository raw-SQL style.
type Repository struct {
	db            *DB
	logger        observability.Logger
	vectorBackend string // "pgvector" or "none"
}

// NewRepository builds a Repository bound to db. vectorBackend selects
// whether SearchSimilar issues a pgvector query or reports
// apperr.ErrVectorSearchUnsupported.
func NewRepository(db *DB, vectorBackend string, logger observability.Logger) *Repository {
	return &Repository{db: db, vectorBackend: vectorBackend, logger: logger}
}

// Begin opens a transaction against the primary pool.
func (r *Repository) Begin(ctx context.Context) (store.Tx, error) {
	tx, err := r.db.Writer().BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.NewStoreError("begin", err)
	}
	return &sqlxTx{tx: tx}, nil
}

func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%f", f)
	}
	b.WriteByte(']')
	return b.String()
}

func parseVector(s string) ([]float32, error) {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return []float32{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		var v float64
		if _, err := fmt.Sscanf(p, "%f", &v); err != nil {
			return nil, fmt.Errorf("parse vector component: %w", err)
		}
		out[i] = float32(v)
	}
	return out, nil
}

// CreateMessage inserts with embedding_status=pending and returns the
// persisted row including server-assigned id/created_at.
func (r *Repository) CreateMessage(ctx context.Context, tx store.Tx, m *store.Message) (*store.Message, error) {
	t := unwrap(tx)
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()

	row := t.QueryRowxContext(ctx, `
		INSERT INTO messages (
			id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,false)
		RETURNING id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
	`, m.ID, m.TenantID, m.ConversationID, m.Role, m.Content, m.Metadata,
		m.ImportanceScore, store.EmbeddingPending, now, now)

	out := &store.Message{}
	if err := row.StructScan(out); err != nil {
		return nil, apperr.NewStoreError("create_message", err)
	}
	return out, nil
}

// GetMessage fetches a single message by (tenant, id); returns
// apperr.ErrNoRows if absent.
func (r *Repository) GetMessage(ctx context.Context, tx store.Tx, tenantID, id string) (*store.Message, error) {
	q := db(r, ctx, tx)
	out := &store.Message{}
	err := sqlx.GetContext(ctx, q, out, `
		SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		FROM messages WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNoRows
	}
	if err != nil {
		return nil, apperr.NewStoreError("get_message", err)
	}
	return out, nil
}

// GetMessageByID loads a message by id alone, for callers (the embedding
// job queue) that only hold a message ID, not its tenant.
func (r *Repository) GetMessageByID(ctx context.Context, tx store.Tx, id string) (*store.Message, error) {
	q := db(r, ctx, tx)
	out := &store.Message{}
	err := sqlx.GetContext(ctx, q, out, `
		SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		FROM messages WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNoRows
	}
	if err != nil {
		return nil, apperr.NewStoreError("get_message_by_id", err)
	}
	return out, nil
}

// UpdateMessageEmbedding performs a single-row atomic update of embedding,
// importance, and status; returns apperr.ErrNoRows if the row is gone.
func (r *Repository) UpdateMessageEmbedding(ctx context.Context, tx store.Tx, id string, embedding []float32, importance *float64, status store.EmbeddingStatus) (*store.Message, error) {
	t := unwrap(tx)

	var embeddingArg interface{}
	if embedding != nil {
		embeddingArg = vectorLiteral(embedding)
	}

	row := t.QueryRowxContext(ctx, `
		UPDATE messages
		SET embedding = CASE WHEN $1::text IS NULL THEN NULL ELSE $1::vector END,
		    importance_score = $2,
		    embedding_status = $3,
		    updated_at = now()
		WHERE id = $4
		RETURNING id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
	`, embeddingArg, importance, status, id)

	out := &store.Message{}
	if err := row.StructScan(out); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrNoRows
		}
		return nil, apperr.NewStoreError("update_message_embedding", err)
	}
	return out, nil
}

// ListActiveMessages returns archived=false, embedding_status=completed rows.
func (r *Repository) ListActiveMessages(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter) ([]*store.Message, error) {
	q := db(r, ctx, tx)
	query := `
		SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		FROM messages
		WHERE tenant_id = $1 AND archived = false AND embedding_status = 'completed'`
	args := []interface{}{tenantID}

	if filter.Conversation != "" {
		args = append(args, filter.Conversation)
		query += fmt.Sprintf(" AND conversation_id = $%d", len(args))
	}
	if filter.ImportanceMin != nil {
		args = append(args, *filter.ImportanceMin)
		query += fmt.Sprintf(" AND COALESCE(importance_score, 0) >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	var out []*store.Message
	if err := sqlx.SelectContext(ctx, q, &out, query, args...); err != nil {
		return nil, apperr.NewStoreError("list_active_messages", err)
	}
	return out, nil
}

// SearchSimilar issues a pgvector <=> ordered query when the configured
// backend supports it; otherwise it reports
// apperr.ErrVectorSearchUnsupported so the caller falls back to
// in-process ranking over ListActiveMessages.
func (r *Repository) SearchSimilar(ctx context.Context, tx store.Tx, tenantID string, filter store.ListFilter, queryVec []float32) ([]*store.Message, error) {
	if r.vectorBackend != "pgvector" {
		return nil, apperr.ErrVectorSearchUnsupported
	}
	q := db(r, ctx, tx)

	query := `
		SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived,
			embedding::text AS raw_embedding
		FROM messages
		WHERE tenant_id = $1 AND archived = false AND embedding_status = 'completed'
		  AND embedding IS NOT NULL`
	args := []interface{}{tenantID}

	if filter.Conversation != "" {
		args = append(args, filter.Conversation)
		query += fmt.Sprintf(" AND conversation_id = $%d", len(args))
	}
	if filter.ImportanceMin != nil {
		args = append(args, *filter.ImportanceMin)
		query += fmt.Sprintf(" AND COALESCE(importance_score, 0) >= $%d", len(args))
	}
	args = append(args, vectorLiteral(queryVec))
	vecIdx := len(args)
	query += fmt.Sprintf(" ORDER BY embedding <=> $%d::vector", vecIdx)
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewStoreError("search_similar", err)
	}
	defer rows.Close()

	var out []*store.Message
	for rows.Next() {
		var m store.Message
		var rawEmbedding sql.NullString
		dest := map[string]interface{}{}
		if err := rows.MapScan(dest); err != nil {
			return nil, apperr.NewStoreError("search_similar_scan", err)
		}
		if err := scanMessageMap(dest, &m); err != nil {
			return nil, apperr.NewStoreError("search_similar_scan", err)
		}
		if v, ok := dest["raw_embedding"].(string); ok {
			rawEmbedding = sql.NullString{String: v, Valid: true}
		}
		if rawEmbedding.Valid {
			vec, err := parseVector(rawEmbedding.String)
			if err == nil {
				m.Embedding = vec
			}
		}
		out = append(out, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStoreError("search_similar_rows", err)
	}
	return out, nil
}

// EnqueueEmbeddingJob inserts a pending job for messageID.
func (r *Repository) EnqueueEmbeddingJob(ctx context.Context, tx store.Tx, messageID string) (*store.EmbeddingJob, error) {
	t := unwrap(tx)
	job := &store.EmbeddingJob{ID: uuid.New().String()}
	row := t.QueryRowxContext(ctx, `
		INSERT INTO embedding_jobs (id, message_id, status, attempts, updated_at)
		VALUES ($1, $2, 'pending', 0, now())
		RETURNING id, message_id, status, attempts, last_error, updated_at
	`, job.ID, messageID)
	if err := row.StructScan(job); err != nil {
		return nil, apperr.NewStoreError("enqueue_embedding_job", err)
	}
	return job, nil
}

// ClaimEmbeddingJobs atomically selects up to limit claimable jobs using
// SELECT ... FOR UPDATE SKIP LOCKED, marking each running and bumping
// attempts, so no job is ever handed to two concurrent claimers.
func (r *Repository) ClaimEmbeddingJobs(ctx context.Context, tx store.Tx, limit, maxAttempts int, retryBackoffSeconds float64) ([]*store.EmbeddingJob, error) {
	t := unwrap(tx)

	rows, err := t.QueryxContext(ctx, `
		SELECT id FROM embedding_jobs
		WHERE status = 'pending'
		   OR (status = 'failed' AND attempts < $1 AND updated_at <= now() - ($2 || ' seconds')::interval)
		ORDER BY updated_at ASC
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, maxAttempts, retryBackoffSeconds, limit)
	if err != nil {
		return nil, apperr.NewStoreError("claim_embedding_jobs_select", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, apperr.NewStoreError("claim_embedding_jobs_scan", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.NewStoreError("claim_embedding_jobs_rows", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		UPDATE embedding_jobs
		SET status = 'running', attempts = attempts + 1, updated_at = now()
		WHERE id IN (?)
		RETURNING id, message_id, status, attempts, last_error, updated_at
	`, ids)
	if err != nil {
		return nil, apperr.NewStoreError("claim_embedding_jobs_in", err)
	}
	query = t.Rebind(query)

	var jobs []*store.EmbeddingJob
	updRows, err := t.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.NewStoreError("claim_embedding_jobs_update", err)
	}
	defer updRows.Close()
	for updRows.Next() {
		job := &store.EmbeddingJob{}
		if err := updRows.StructScan(job); err != nil {
			return nil, apperr.NewStoreError("claim_embedding_jobs_update_scan", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, updRows.Err()
}

// UpdateEmbeddingJob transitions a job to a terminal or retryable state;
// tolerates a missing row.
func (r *Repository) UpdateEmbeddingJob(ctx context.Context, tx store.Tx, jobID string, status store.JobStatus, lastErr *string) error {
	t := unwrap(tx)
	_, err := t.ExecContext(ctx, `
		UPDATE embedding_jobs SET status = $1, last_error = $2, updated_at = now() WHERE id = $3
	`, status, lastErr, jobID)
	if err != nil {
		return apperr.NewStoreError("update_embedding_job", err)
	}
	return nil
}

// ReclaimStuckJobs resets running jobs whose updated_at predates
// stuckTimeoutSeconds back to failed, so they re-enter the claim cycle.
func (r *Repository) ReclaimStuckJobs(ctx context.Context, tx store.Tx, stuckTimeoutSeconds float64) (int, error) {
	t := unwrap(tx)
	res, err := t.ExecContext(ctx, `
		UPDATE embedding_jobs
		SET status = 'failed', last_error = 'stuck_timeout_reclaimed', updated_at = now()
		WHERE status = 'running' AND updated_at <= now() - ($1 || ' seconds')::interval
	`, stuckTimeoutSeconds)
	if err != nil {
		return 0, apperr.NewStoreError("reclaim_stuck_jobs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// UpsertRetentionPolicy writes a tenant's policy, replacing any existing row.
func (r *Repository) UpsertRetentionPolicy(ctx context.Context, tx store.Tx, p *store.RetentionPolicy) error {
	t := unwrap(tx)
	_, err := t.ExecContext(ctx, `
		INSERT INTO retention_policies (tenant_id, max_age_days, importance_threshold, max_items, delete_after_days)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (tenant_id) DO UPDATE SET
			max_age_days = EXCLUDED.max_age_days,
			importance_threshold = EXCLUDED.importance_threshold,
			max_items = EXCLUDED.max_items,
			delete_after_days = EXCLUDED.delete_after_days
	`, p.TenantID, p.MaxAgeDays, p.ImportanceThreshold, p.MaxItems, p.DeleteAfterDays)
	if err != nil {
		return apperr.NewStoreError("upsert_retention_policy", err)
	}
	return nil
}

// LoadPolicy returns apperr.ErrNoRows if no policy row exists yet; callers
// materialise service defaults in that case (spec.md §3).
func (r *Repository) LoadPolicy(ctx context.Context, tx store.Tx, tenantID string) (*store.RetentionPolicy, error) {
	q := db(r, ctx, tx)
	out := &store.RetentionPolicy{}
	err := sqlx.GetContext(ctx, q, out, `
		SELECT tenant_id, max_age_days, importance_threshold, max_items, delete_after_days
		FROM retention_policies WHERE tenant_id = $1
	`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNoRows
	}
	if err != nil {
		return nil, apperr.NewStoreError("load_policy", err)
	}
	return out, nil
}

// ListRetentionRules returns enabled-or-not rules ascending by priority.
func (r *Repository) ListRetentionRules(ctx context.Context, tx store.Tx, tenantID string) ([]*store.RetentionRule, error) {
	q := db(r, ctx, tx)
	var out []*store.RetentionRule
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT id, tenant_id, name, rule_type, conditions, action, priority, enabled, last_applied
		FROM retention_rules WHERE tenant_id = $1 ORDER BY priority ASC
	`, tenantID)
	if err != nil {
		return nil, apperr.NewStoreError("list_retention_rules", err)
	}
	return out, nil
}

// UpsertRetentionRule inserts or updates a rule by (tenant_id, name).
func (r *Repository) UpsertRetentionRule(ctx context.Context, tx store.Tx, rule *store.RetentionRule) (*store.RetentionRule, error) {
	t := unwrap(tx)
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	row := t.QueryRowxContext(ctx, `
		INSERT INTO retention_rules (id, tenant_id, name, rule_type, conditions, action, priority, enabled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (tenant_id, name) DO UPDATE SET
			rule_type = EXCLUDED.rule_type,
			conditions = EXCLUDED.conditions,
			action = EXCLUDED.action,
			priority = EXCLUDED.priority,
			enabled = EXCLUDED.enabled
		RETURNING id, tenant_id, name, rule_type, conditions, action, priority, enabled, last_applied
	`, rule.ID, rule.TenantID, rule.Name, rule.RuleType, rule.Conditions, rule.Action, rule.Priority, rule.Enabled)
	out := &store.RetentionRule{}
	if err := row.StructScan(out); err != nil {
		return nil, apperr.NewStoreError("upsert_retention_rule", err)
	}
	return out, nil
}

// MarkRuleApplied sets last_applied = now() for a rule.
func (r *Repository) MarkRuleApplied(ctx context.Context, tx store.Tx, ruleID string) error {
	t := unwrap(tx)
	_, err := t.ExecContext(ctx, `UPDATE retention_rules SET last_applied = now() WHERE id = $1`, ruleID)
	if err != nil {
		return apperr.NewStoreError("mark_rule_applied", err)
	}
	return nil
}

// ArchiveCandidates returns archived=false rows past the age/importance
// default-policy thresholds.
func (r *Repository) ArchiveCandidates(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int, importanceThreshold float64) ([]*store.Message, error) {
	q := db(r, ctx, tx)
	var out []*store.Message
	err := sqlx.SelectContext(ctx, q, &out, `
		SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		FROM messages
		WHERE tenant_id = $1 AND archived = false
		  AND (COALESCE(importance_score, 0) <= $2 OR created_at <= now() - ($3 || ' days')::interval)
	`, tenantID, importanceThreshold, olderThanDays)
	if err != nil {
		return nil, apperr.NewStoreError("archive_candidates", err)
	}
	return out, nil
}

// CandidatesForRule builds the candidate set for one RetentionRule per its
// rule_type, always restricted to archived=false in the tenant.
func (r *Repository) CandidatesForRule(ctx context.Context, tx store.Tx, tenantID string, rule *store.RetentionRule, maxItems int) ([]*store.Message, error) {
	q := db(r, ctx, tx)
	base := `SELECT id, tenant_id, conversation_id, role, content, metadata,
			importance_score, embedding_status, created_at, updated_at, archived
		FROM messages WHERE tenant_id = $1 AND archived = false`

	switch rule.RuleType {
	case store.RuleAge:
		days := intCondition(rule.Conditions, "days", 30)
		var out []*store.Message
		err := sqlx.SelectContext(ctx, q, &out, base+` AND created_at <= now() - ($2 || ' days')::interval`, tenantID, days)
		return out, wrapStoreErr("candidates_for_rule_age", err)

	case store.RuleImportance:
		threshold := floatCondition(rule.Conditions, "threshold", 0.35)
		var out []*store.Message
		err := sqlx.SelectContext(ctx, q, &out, base+` AND (importance_score <= $2 OR importance_score IS NULL)`, tenantID, threshold)
		return out, wrapStoreErr("candidates_for_rule_importance", err)

	case store.RuleConversationAge:
		days := intCondition(rule.Conditions, "days", 30)
		var out []*store.Message
		err := sqlx.SelectContext(ctx, q, &out, base+`
			AND conversation_id IN (
				SELECT conversation_id FROM messages
				WHERE tenant_id = $1
				GROUP BY conversation_id
				HAVING MAX(created_at) <= now() - ($2 || ' days')::interval
			)`, tenantID, days)
		return out, wrapStoreErr("candidates_for_rule_conversation_age", err)

	case store.RuleMaxItems:
		limit := maxItems
		if v, ok := rule.Conditions["max_items"]; ok {
			if f, ok := v.(float64); ok {
				limit = int(f)
			}
		}
		var out []*store.Message
		err := sqlx.SelectContext(ctx, q, &out, base+`
			ORDER BY created_at DESC OFFSET $2`, tenantID, limit)
		return out, wrapStoreErr("candidates_for_rule_max_items", err)

	case store.RuleCustom:
		query := base
		args := []interface{}{tenantID}
		if v, ok := rule.Conditions["role"].(string); ok && v != "" {
			args = append(args, v)
			query += fmt.Sprintf(" AND role = $%d", len(args))
		}
		if v, ok := rule.Conditions["min_importance"].(float64); ok {
			args = append(args, v)
			query += fmt.Sprintf(" AND COALESCE(importance_score, 0) >= $%d", len(args))
		}
		if v, ok := rule.Conditions["max_importance"].(float64); ok {
			args = append(args, v)
			query += fmt.Sprintf(" AND COALESCE(importance_score, 0) <= $%d", len(args))
		}
		var out []*store.Message
		err := sqlx.SelectContext(ctx, q, &out, query, args...)
		return out, wrapStoreErr("candidates_for_rule_custom", err)

	default:
		return nil, fmt.Errorf("unknown rule_type %q", rule.RuleType)
	}
}

func intCondition(m store.Metadata, key string, def int) int {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return def
}

func floatCondition(m store.Metadata, key string, def float64) float64 {
	if v, ok := m[key]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return apperr.NewStoreError(op, err)
}

// MoveToArchive inserts an ArchivedMessage twin (skipping any that already
// exist) and flips archived=true; idempotent on retry.
func (r *Repository) MoveToArchive(ctx context.Context, tx store.Tx, messages []*store.Message, reason string) (int, error) {
	t := unwrap(tx)
	count := 0
	for _, m := range messages {
		_, err := t.ExecContext(ctx, `
			INSERT INTO archived_messages (id, tenant_id, conversation_id, role, content, metadata, archived_at, archive_reason)
			VALUES ($1,$2,$3,$4,$5,$6,now(),$7)
			ON CONFLICT (id) DO NOTHING
		`, m.ID, m.TenantID, m.ConversationID, m.Role, m.Content, m.Metadata, reason)
		if err != nil {
			return count, apperr.NewStoreError("move_to_archive_insert", err)
		}
		res, err := t.ExecContext(ctx, `UPDATE messages SET archived = true, updated_at = now() WHERE id = $1 AND archived = false`, m.ID)
		if err != nil {
			return count, apperr.NewStoreError("move_to_archive_update", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			count++
		}
	}
	return count, nil
}

// DeleteArchived hard-deletes archived_messages rows past olderThanDays.
func (r *Repository) DeleteArchived(ctx context.Context, tx store.Tx, tenantID string, olderThanDays int) (int, error) {
	t := unwrap(tx)
	res, err := t.ExecContext(ctx, `
		DELETE FROM archived_messages
		WHERE tenant_id = $1 AND archived_at <= now() - ($2 || ' days')::interval
	`, tenantID, olderThanDays)
	if err != nil {
		return 0, apperr.NewStoreError("delete_archived", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// HardDelete removes live messages outright (RuleAction=delete path);
// embedding_jobs rows cascade via foreign key.
func (r *Repository) HardDelete(ctx context.Context, tx store.Tx, messages []*store.Message) (int, error) {
	if len(messages) == 0 {
		return 0, nil
	}
	t := unwrap(tx)
	ids := make([]string, len(messages))
	for i, m := range messages {
		ids[i] = m.ID
	}
	query, args, err := sqlx.In(`DELETE FROM messages WHERE id IN (?)`, ids)
	if err != nil {
		return 0, apperr.NewStoreError("hard_delete_in", err)
	}
	query = t.Rebind(query)
	res, err := t.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, apperr.NewStoreError("hard_delete", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ListTenants returns every distinct tenant_id observed in Message.
func (r *Repository) ListTenants(ctx context.Context, tx store.Tx) ([]string, error) {
	q := db(r, ctx, tx)
	var out []string
	err := sqlx.SelectContext(ctx, q, &out, `SELECT DISTINCT tenant_id FROM messages ORDER BY tenant_id`)
	if err != nil {
		return nil, apperr.NewStoreError("list_tenants", err)
	}
	return out, nil
}

// db resolves a query-capable handle: the transaction if one is open, else
// a read-replica-routed connection for read-only calls made outside a tx.
func db(r *Repository, ctx context.Context, tx store.Tx) sqlx.QueryerContext {
	if tx != nil {
		return unwrap(tx)
	}
	return r.db.Reader(ctx)
}

// scanMessageMap copies a MapScan result into a typed Message, used by
// SearchSimilar which needs the extra raw_embedding projection column.
func scanMessageMap(src map[string]interface{}, dst *store.Message) error {
	get := func(k string) interface{} { return src[k] }

	if v, ok := get("id").(string); ok {
		dst.ID = v
	}
	if v, ok := get("tenant_id").(string); ok {
		dst.TenantID = v
	}
	if v, ok := get("conversation_id").(string); ok {
		dst.ConversationID = v
	}
	if v, ok := get("role").(string); ok {
		dst.Role = store.Role(v)
	}
	if v, ok := get("content").(string); ok {
		dst.Content = v
	}
	if v, ok := get("embedding_status").(string); ok {
		dst.EmbeddingStatus = store.EmbeddingStatus(v)
	}
	if v, ok := get("importance_score").(float64); ok {
		dst.ImportanceScore = &v
	}
	if v, ok := get("created_at").(time.Time); ok {
		dst.CreatedAt = v
	}
	if v, ok := get("updated_at").(time.Time); ok {
		dst.UpdatedAt = v
	}
	if v, ok := get("archived").(bool); ok {
		dst.Archived = v
	}
	if raw, ok := get("metadata").([]byte); ok {
		var m store.Metadata
		if err := m.Scan(raw); err == nil {
			dst.Metadata = m
		}
	}
	return nil
}
