// Package validation enforces spec.md §6.2's boundary checks: identifier
// charset/length, content trimming, metadata depth/size limits, and
// importance_override's type check. It runs before domain structs are
// built, mirroring the teacher's context_api.go inline field-validation
// style, generalised into a standalone, testable package.
package validation

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/store"
)

const (
	MinTenantIDLen       = 1
	MaxTenantIDLen       = 64
	MinConversationIDLen = 1
	MaxConversationIDLen = 128
	MaxContentLen        = 100_000
	MaxMetadataDepth      = 4
	MaxMetadataElems      = 50
	MaxMetadataStringLen  = 2048
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// TenantID validates a tenant identifier's charset and length.
func TenantID(v string) error {
	return identifier("tenant_id", v, MinTenantIDLen, MaxTenantIDLen)
}

// ConversationID validates a conversation identifier's charset and length.
func ConversationID(v string) error {
	return identifier("conversation_id", v, MinConversationIDLen, MaxConversationIDLen)
}

func identifier(field, v string, min, max int) error {
	if len(v) < min || len(v) > max {
		return apperr.NewValidationError(field, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)+" characters")
	}
	if !identifierPattern.MatchString(v) {
		return apperr.NewValidationError(field, "must match charset [A-Za-z0-9_.-]")
	}
	return nil
}

// Role checks that the given role is one of the three known speakers.
func Role(v store.Role) error {
	switch v {
	case store.RoleUser, store.RoleAssistant, store.RoleSystem:
		return nil
	default:
		return apperr.NewValidationError("role", "must be one of user, assistant, system")
	}
}

// Content trims surrounding whitespace and enforces the non-empty,
// length-bounded invariant. Returns the trimmed content.
func Content(v string) (string, error) {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return "", apperr.NewValidationError("content", "must not be empty")
	}
	if len(trimmed) > MaxContentLen {
		return "", apperr.NewValidationError("content", "must not exceed "+strconv.Itoa(MaxContentLen)+" characters")
	}
	return trimmed, nil
}

// ImportanceOverride only checks the JSON value decoded to a number and
// reports a malformed type with a ValidationError; the [0,1] clamp is the
// service layer's job (the single authoritative clamp point), per
// SPEC_FULL.md's resolution of Open Question 3.
func ImportanceOverride(raw interface{}) (*float64, error) {
	if raw == nil {
		return nil, nil
	}
	v, ok := raw.(float64)
	if !ok {
		return nil, apperr.NewValidationError("importance_override", "must be a JSON number")
	}
	return &v, nil
}

// Metadata returns a sanitised copy of a caller-supplied metadata object: enforces
// depth <= MaxMetadataDepth, <= MaxMetadataElems keys/elements per
// container, and truncates string values to MaxMetadataStringLen.
func Metadata(raw map[string]interface{}) (store.Metadata, error) {
	if raw == nil {
		return store.Metadata{}, nil
	}
	sanitised, err := sanitiseValue(raw, 1)
	if err != nil {
		return nil, err
	}
	out, ok := sanitised.(map[string]interface{})
	if !ok {
		return nil, apperr.NewValidationError("metadata", "must be a JSON object")
	}
	return store.Metadata(out), nil
}

func sanitiseValue(v interface{}, depth int) (interface{}, error) {
	if depth > MaxMetadataDepth {
		return nil, apperr.NewValidationError("metadata", "exceeds maximum nesting depth")
	}

	switch val := v.(type) {
	case nil, bool, float64:
		return val, nil
	case string:
		if len(val) > MaxMetadataStringLen {
			return val[:MaxMetadataStringLen], nil
		}
		return val, nil
	case []interface{}:
		if len(val) > MaxMetadataElems {
			return nil, apperr.NewValidationError("metadata", "array exceeds maximum element count")
		}
		out := make([]interface{}, len(val))
		for i, elem := range val {
			sanitisedElem, err := sanitiseValue(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = sanitisedElem
		}
		return out, nil
	case map[string]interface{}:
		if len(val) > MaxMetadataElems {
			return nil, apperr.NewValidationError("metadata", "object exceeds maximum key count")
		}
		out := make(map[string]interface{}, len(val))
		for k, elem := range val {
			sanitisedElem, err := sanitiseValue(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = sanitisedElem
		}
		return out, nil
	default:
		return nil, apperr.NewValidationError("metadata", "unsupported JSON value type")
	}
}
