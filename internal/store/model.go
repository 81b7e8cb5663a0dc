// Package store defines the persisted entities of the conversation memory
// layer and the transactional Store interface over them.
package store

import "time"

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// EmbeddingStatus tracks a Message's embedding lifecycle.
type EmbeddingStatus string

const (
	EmbeddingPending   EmbeddingStatus = "pending"
	EmbeddingCompleted EmbeddingStatus = "completed"
	EmbeddingFailed    EmbeddingStatus = "failed"
)

// JobStatus tracks an EmbeddingJob's lifecycle.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// RuleType selects how a RetentionRule builds its candidate query.
type RuleType string

const (
	RuleAge             RuleType = "age"
	RuleImportance       RuleType = "importance"
	RuleConversationAge  RuleType = "conversation_age"
	RuleMaxItems         RuleType = "max_items"
	RuleCustom           RuleType = "custom"
)

// RuleAction is the effect a matched RetentionRule applies.
type RuleAction string

const (
	ActionArchive RuleAction = "archive"
	ActionDelete  RuleAction = "delete"
	ActionCold    RuleAction = "cold"
)

// Message is a single chat turn belonging to a tenant/conversation pair.
type Message struct {
	ID              string          `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"tenant_id"`
	ConversationID  string          `db:"conversation_id" json:"conversation_id"`
	Role            Role            `db:"role" json:"role"`
	Content         string          `db:"content" json:"content"`
	Metadata        Metadata        `db:"metadata" json:"metadata"`
	ImportanceScore *float64        `db:"importance_score" json:"importance_score,omitempty"`
	Embedding       []float32       `db:"-" json:"embedding,omitempty"`
	EmbeddingStatus EmbeddingStatus `db:"embedding_status" json:"embedding_status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	Archived        bool            `db:"archived" json:"archived"`
}

// ArchivedMessage is the twin row created when a Message is soft-removed.
type ArchivedMessage struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	Role           Role      `db:"role" json:"role"`
	Content        string    `db:"content" json:"content"`
	Metadata       Metadata  `db:"metadata" json:"metadata"`
	ArchivedAt     time.Time `db:"archived_at" json:"archived_at"`
	ArchiveReason  string    `db:"archive_reason" json:"archive_reason"`
}

// EmbeddingJob is a durable unit of embedding work tied to one Message.
type EmbeddingJob struct {
	ID        string    `db:"id" json:"id"`
	MessageID string    `db:"message_id" json:"message_id"`
	Status    JobStatus `db:"status" json:"status"`
	Attempts  int       `db:"attempts" json:"attempts"`
	LastError *string   `db:"last_error" json:"last_error,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RetentionPolicy is the per-tenant default-policy fallback used when no
// RetentionRule applies.
type RetentionPolicy struct {
	TenantID              string  `db:"tenant_id" json:"tenant_id"`
	MaxAgeDays            int     `db:"max_age_days" json:"max_age_days"`
	ImportanceThreshold   float64 `db:"importance_threshold" json:"importance_threshold"`
	MaxItems              int     `db:"max_items" json:"max_items"`
	DeleteAfterDays       int     `db:"delete_after_days" json:"delete_after_days"`
}

// RetentionRule is one tenant-scoped, priority-ordered lifecycle rule.
type RetentionRule struct {
	ID          string     `db:"id" json:"id"`
	TenantID    string     `db:"tenant_id" json:"tenant_id"`
	Name        string     `db:"name" json:"name"`
	RuleType    RuleType   `db:"rule_type" json:"rule_type"`
	Conditions  Metadata   `db:"conditions" json:"conditions"`
	Action      RuleAction `db:"action" json:"action"`
	Priority    int        `db:"priority" json:"priority"`
	Enabled     bool       `db:"enabled" json:"enabled"`
	LastApplied *time.Time `db:"last_applied" json:"last_applied,omitempty"`
}
