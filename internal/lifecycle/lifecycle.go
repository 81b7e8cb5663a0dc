// Package lifecycle implements the rule-driven retention engine: per-tenant
// RetentionRules, evaluated in priority order, with a RetentionPolicy
// fallback when a tenant defines no rules. Ported from
// original_source/.../services/advanced_retention.py's apply_retention_rules
// and services/retention.py's RetentionService.run.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/cache"
	"github.com/convomesh/memoryd/internal/config"
	"github.com/convomesh/memoryd/internal/observability"
	"github.com/convomesh/memoryd/internal/store"
)

// Result is the summary LifecycleEngine.Apply returns, mirroring
// apply_retention_rules' response dict.
type Result struct {
	TenantID              string        `json:"tenant_id"`
	RulesApplied          []string      `json:"rules_applied"`
	MessagesArchived      int           `json:"messages_archived"`
	MessagesDeleted       int           `json:"messages_deleted"`
	MessagesMovedToCold   int           `json:"messages_moved_to_cold"`
	ExecutionTimeSeconds  float64       `json:"execution_time_seconds"`
	DryRun                bool          `json:"dry_run"`
}

// Engine applies retention rules (or the tenant's default policy) and
// invalidates the search cache for anything it removes from view.
type Engine struct {
	store     store.Store
	cache     cache.ResultCache
	logger    observability.Logger
	metrics   observability.MetricsClient
	retention config.RetentionConfig
}

// New builds a lifecycle Engine. retention supplies the defaults used to
// materialise a tenant's RetentionPolicy the first time it is needed.
func New(st store.Store, resultCache cache.ResultCache, retention config.RetentionConfig, logger observability.Logger, metrics observability.MetricsClient) *Engine {
	return &Engine{store: st, cache: resultCache, logger: logger, metrics: metrics, retention: retention}
}

// defaultActions is the action set applied when a caller omits actions
// entirely, matching retention.py's `actions = actions or {"archive",
// "delete"}` — cold storage is never implied, only ever opted into.
var defaultActions = map[string]bool{
	string(store.ActionArchive): true,
	string(store.ActionDelete):  true,
}

func actionSet(actions []string) map[string]bool {
	if len(actions) == 0 {
		return defaultActions
	}
	set := make(map[string]bool, len(actions))
	for _, a := range actions {
		set[a] = true
	}
	return set
}

// Apply evaluates every enabled rule for tenantID in priority order; if none
// are defined, it falls back to the tenant's RetentionPolicy, per spec.md
// §4.7 (Open Question 2's resolution: rules always take precedence, the
// policy is purely a no-rules fallback, never layered with rules). actions
// restricts which mutation kinds ("archive", "delete", "cold") are allowed
// to run; nil or empty means the default archive+delete set.
func (e *Engine) Apply(ctx context.Context, tenantID string, actions []string, dryRun bool) (*Result, error) {
	start := time.Now()
	result := &Result{TenantID: tenantID, RulesApplied: []string{}, DryRun: dryRun}
	allowed := actionSet(actions)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	rules, err := e.store.ListRetentionRules(ctx, tx, tenantID)
	if err != nil {
		return nil, err
	}

	var enabled []*store.RetentionRule
	for _, r := range rules {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}

	if len(enabled) == 0 {
		if err := e.applyDefaultPolicy(ctx, tx, tenantID, allowed, dryRun, result); err != nil {
			return nil, err
		}
	} else {
		for _, rule := range enabled {
			if !allowed[string(rule.Action)] {
				continue
			}
			archived, deleted, cold, err := e.applyRule(ctx, tx, tenantID, rule, dryRun)
			if err != nil {
				e.logger.Error("retention rule failed", map[string]interface{}{"rule_id": rule.ID, "rule_name": rule.Name, "error": err.Error()})
				continue
			}
			result.RulesApplied = append(result.RulesApplied, rule.Name)
			result.MessagesArchived += archived
			result.MessagesDeleted += deleted
			result.MessagesMovedToCold += cold

			if !dryRun {
				if err := e.store.MarkRuleApplied(ctx, tx, rule.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	if !dryRun {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		committed = true
		e.invalidate(ctx, tenantID)
	}

	result.ExecutionTimeSeconds = time.Since(start).Seconds()
	e.metrics.ObserveLatency("retention_apply_duration_seconds", nil, result.ExecutionTimeSeconds)
	return result, nil
}

func (e *Engine) applyRule(ctx context.Context, tx store.Tx, tenantID string, rule *store.RetentionRule, dryRun bool) (archived, deleted, cold int, err error) {
	maxItems := 0
	if rule.RuleType == store.RuleMaxItems {
		if v, ok := rule.Conditions["max_items"].(float64); ok {
			maxItems = int(v)
		}
	}

	candidates, err := e.store.CandidatesForRule(ctx, tx, tenantID, rule, maxItems)
	if err != nil {
		return 0, 0, 0, err
	}
	if len(candidates) == 0 {
		return 0, 0, 0, nil
	}
	if dryRun {
		switch rule.Action {
		case store.ActionArchive:
			return len(candidates), 0, 0, nil
		case store.ActionDelete:
			return 0, len(candidates), 0, nil
		case store.ActionCold:
			return 0, 0, len(candidates), nil
		}
		return 0, 0, 0, nil
	}

	switch rule.Action {
	case store.ActionArchive:
		n, err := e.store.MoveToArchive(ctx, tx, candidates, rule.Name)
		return n, 0, 0, err
	case store.ActionDelete:
		n, err := e.store.HardDelete(ctx, tx, candidates)
		return 0, n, 0, err
	case store.ActionCold:
		n, err := e.store.MoveToArchive(ctx, tx, candidates, fmt.Sprintf("cold_storage:%s", rule.Name))
		return 0, 0, n, err
	default:
		return 0, 0, 0, fmt.Errorf("lifecycle: unknown rule action %q", rule.Action)
	}
}

// applyDefaultPolicy runs the no-rules fallback path. A tenant with no
// RetentionPolicy row gets one materialised from the configured defaults
// and persisted via UpsertRetentionPolicy, mirroring retention.py's
// `upsert_retention_policy(..., max_age_days=settings.retention_max_age_days,
// ...)` on `policy is None` — a missing policy is never a no-op, it is the
// service defaults taking effect for the first time. Persistence rides the
// caller's transaction, so it naturally rolls back on a dry run.
func (e *Engine) applyDefaultPolicy(ctx context.Context, tx store.Tx, tenantID string, allowed map[string]bool, dryRun bool, result *Result) error {
	policy, err := e.store.LoadPolicy(ctx, tx, tenantID)
	if errors.Is(err, apperr.ErrNoRows) {
		policy = &store.RetentionPolicy{
			TenantID:            tenantID,
			MaxAgeDays:          e.retention.MaxAgeDays,
			ImportanceThreshold: e.retention.ImportanceThreshold,
			DeleteAfterDays:     e.retention.DeleteAfterDays,
		}
		if err := e.store.UpsertRetentionPolicy(ctx, tx, policy); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if allowed[string(store.ActionArchive)] {
		candidates, err := e.store.ArchiveCandidates(ctx, tx, tenantID, policy.MaxAgeDays, policy.ImportanceThreshold)
		if err != nil {
			return err
		}
		if dryRun {
			result.MessagesArchived += len(candidates)
		} else if len(candidates) > 0 {
			n, err := e.store.MoveToArchive(ctx, tx, candidates, "default_policy")
			if err != nil {
				return err
			}
			result.MessagesArchived += n
		}
	}

	if dryRun || !allowed[string(store.ActionDelete)] {
		return nil
	}
	deleted, err := e.store.DeleteArchived(ctx, tx, tenantID, policy.DeleteAfterDays)
	if err != nil {
		return err
	}
	result.MessagesDeleted += deleted
	return nil
}

func (e *Engine) invalidate(ctx context.Context, tenantID string) {
	if err := e.cache.DeletePrefix(ctx, fmt.Sprintf("search:%s:", tenantID)); err != nil {
		e.logger.Warn("retention cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}
