package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/service"
	"github.com/convomesh/memoryd/internal/store"
	"github.com/convomesh/memoryd/internal/validation"
)

// ingestRequest is the wire shape for POST /v1/messages.
type ingestRequest struct {
	TenantID           string                 `json:"tenant_id"`
	ConversationID     string                 `json:"conversation_id"`
	Role               string                 `json:"role"`
	Content            string                 `json:"content"`
	Metadata           map[string]interface{} `json:"metadata"`
	ImportanceOverride interface{}            `json:"importance_override"`
}

func (h *Handler) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperr.NewValidationError("body", err.Error()))
		return
	}

	if err := validation.TenantID(req.TenantID); err != nil {
		c.Error(err)
		return
	}
	if err := validation.ConversationID(req.ConversationID); err != nil {
		c.Error(err)
		return
	}
	role := store.Role(req.Role)
	if err := validation.Role(role); err != nil {
		c.Error(err)
		return
	}
	content, err := validation.Content(req.Content)
	if err != nil {
		c.Error(err)
		return
	}
	metadata, err := validation.Metadata(req.Metadata)
	if err != nil {
		c.Error(err)
		return
	}
	override, err := validation.ImportanceOverride(req.ImportanceOverride)
	if err != nil {
		c.Error(err)
		return
	}

	msg, pending, err := h.messages.Ingest(c.Request.Context(), service.IngestRequest{
		TenantID: req.TenantID, ConversationID: req.ConversationID, Role: role,
		Content: content, Metadata: metadata, ImportanceOverride: override,
	})
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if pending {
		status = http.StatusAccepted
	}
	c.JSON(status, msg)
}

func (h *Handler) getMessage(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if err := validation.TenantID(tenantID); err != nil {
		c.Error(err)
		return
	}

	msg, err := h.messages.Fetch(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	if msg == nil {
		c.Error(apperr.NewNotFoundError("message", c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, msg)
}

type searchItem struct {
	MessageID string                 `json:"message_id"`
	Score     float64                `json:"score"`
	Similarity float64               `json:"similarity"`
	Decay     float64                `json:"decay"`
	Content   string                 `json:"content"`
	Role      store.Role             `json:"role"`
	Metadata  map[string]interface{} `json:"metadata"`
	CreatedAt time.Time              `json:"created_at"`
	Importance float64               `json:"importance"`
}

func (h *Handler) search(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if err := validation.TenantID(tenantID); err != nil {
		c.Error(err)
		return
	}
	query := c.Query("query")
	conversationID := c.Query("conversation_id")
	if conversationID != "" {
		if err := validation.ConversationID(conversationID); err != nil {
			c.Error(err)
			return
		}
	}

	topK := intQuery(c, "top_k", 5, 1, 20)
	candidateLimit := intQuery(c, "candidate_limit", 200, 1, 1000)

	var importanceMin *float64
	if raw := c.Query("importance_min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.Error(apperr.NewValidationError("importance_min", "must be a number in [0,1]"))
			return
		}
		importanceMin = &v
	}

	result, err := h.messages.Retrieve(c.Request.Context(), service.RetrieveParams{
		TenantID: tenantID, ConversationID: conversationID, Query: query,
		TopK: topK, CandidateLimit: candidateLimit, ImportanceMin: importanceMin,
	})
	if err != nil {
		c.Error(err)
		return
	}

	items := make([]searchItem, 0, len(result.Items))
	for _, s := range result.Items {
		items = append(items, searchItem{
			MessageID: s.Message.ID, Score: s.Score, Similarity: s.Similarity, Decay: s.Decay,
			Content: s.Message.Content, Role: s.Message.Role, Metadata: s.Message.Metadata,
			CreatedAt: s.Message.CreatedAt, Importance: s.Importance,
		})
	}
	c.JSON(http.StatusOK, gin.H{"total": result.Total, "items": items})
}

type retentionRunRequest struct {
	TenantID string   `json:"tenant_id"`
	Actions  []string `json:"actions"`
	DryRun   bool     `json:"dry_run"`
}

func (h *Handler) retentionRun(c *gin.Context) {
	var req retentionRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperr.NewValidationError("body", err.Error()))
		return
	}
	if err := validation.TenantID(req.TenantID); err != nil {
		c.Error(err)
		return
	}

	result, err := h.lifecycleEngine.Apply(c.Request.Context(), req.TenantID, req.Actions, req.DryRun)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"archived": result.MessagesArchived,
		"deleted":  result.MessagesDeleted,
		"dry_run":  result.DryRun,
	})
}

// listRetentionRules is an EXPANSION endpoint (not in spec.md's distilled
// surface) rounding out rule management alongside /retention/run.
func (h *Handler) listRetentionRules(c *gin.Context) {
	tenantID := c.Param("tenant")
	if err := validation.TenantID(tenantID); err != nil {
		c.Error(err)
		return
	}
	tx, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	defer func() { _ = tx.Rollback() }()

	rules, err := h.store.ListRetentionRules(c.Request.Context(), tx, tenantID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (h *Handler) upsertRetentionRule(c *gin.Context) {
	tenantID := c.Param("tenant")
	if err := validation.TenantID(tenantID); err != nil {
		c.Error(err)
		return
	}

	var rule store.RetentionRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.Error(apperr.NewValidationError("body", err.Error()))
		return
	}
	rule.TenantID = tenantID

	tx, err := h.store.Begin(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	saved, err := h.store.UpsertRetentionRule(c.Request.Context(), tx, &rule)
	if err != nil {
		_ = tx.Rollback()
		c.Error(err)
		return
	}
	if err := tx.Commit(); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	start := time.Now()
	dbStatus := "ok"
	if err := h.dbPing(ctx); err != nil {
		dbStatus = "down"
	}
	latency := time.Since(start).Milliseconds()

	embeddingStatus := "ok"
	if _, err := h.embedder.Embed(ctx, "healthcheck"); err != nil {
		embeddingStatus = "failed"
	}

	status := "ok"
	if dbStatus == "down" {
		status = "down"
	} else if embeddingStatus == "failed" {
		status = "degraded"
	}

	httpStatus := http.StatusOK
	if status == "down" {
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":          status,
		"database":        dbStatus,
		"latency_ms":      latency,
		"uptime_seconds":  time.Since(h.startedAt).Seconds(),
		"environment":     h.environment,
		"version":         h.version,
		"embedding":       embeddingStatus,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}

func intQuery(c *gin.Context, name string, def, min, max int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
