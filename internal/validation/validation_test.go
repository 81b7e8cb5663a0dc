package validation

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convomesh/memoryd/internal/apperr"
	"github.com/convomesh/memoryd/internal/store"
)

func TestTenantID_RejectsBadCharsetAndLength(t *testing.T) {
	assert.NoError(t, TenantID("acme-corp_1.2"))
	assert.Error(t, TenantID(""))
	assert.Error(t, TenantID(strings.Repeat("a", MaxTenantIDLen+1)))
	assert.Error(t, TenantID("acme corp"))
	assert.Error(t, TenantID("acme/corp"))
}

func TestConversationID_RejectsBadCharsetAndLength(t *testing.T) {
	assert.NoError(t, ConversationID("conv-123"))
	assert.Error(t, ConversationID(strings.Repeat("a", MaxConversationIDLen+1)))
}

func TestRole_OnlyAcceptsKnownSpeakers(t *testing.T) {
	assert.NoError(t, Role(store.RoleUser))
	assert.NoError(t, Role(store.RoleAssistant))
	assert.NoError(t, Role(store.RoleSystem))
	assert.Error(t, Role(store.Role("narrator")))
}

func TestContent_TrimsAndRejectsEmpty(t *testing.T) {
	trimmed, err := Content("  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", trimmed)

	_, err = Content("   ")
	assert.Error(t, err)

	_, err = Content(strings.Repeat("a", MaxContentLen+1))
	assert.Error(t, err)
}

func TestImportanceOverride_NilPassesThrough(t *testing.T) {
	v, err := ImportanceOverride(nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestImportanceOverride_AcceptsNumberRejectsOtherTypes(t *testing.T) {
	v, err := ImportanceOverride(float64(1.5))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, 1.5, *v) // clamping happens in internal/service, not here

	_, err = ImportanceOverride("0.5")
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestMetadata_NilBecomesEmptyObject(t *testing.T) {
	out, err := Metadata(nil)
	require.NoError(t, err)
	assert.Equal(t, store.Metadata{}, out)
}

func TestMetadata_TruncatesLongStrings(t *testing.T) {
	out, err := Metadata(map[string]interface{}{
		"note": strings.Repeat("x", MaxMetadataStringLen+100),
	})
	require.NoError(t, err)
	assert.Len(t, out["note"].(string), MaxMetadataStringLen)
}

func TestMetadata_RejectsExcessiveDepth(t *testing.T) {
	deep := map[string]interface{}{"a": map[string]interface{}{"b": map[string]interface{}{"c": map[string]interface{}{"d": map[string]interface{}{"e": 1.0}}}}}
	_, err := Metadata(deep)
	assert.Error(t, err)
}

func TestMetadata_RejectsTooManyKeys(t *testing.T) {
	wide := make(map[string]interface{}, MaxMetadataElems+1)
	for i := 0; i < MaxMetadataElems+1; i++ {
		wide["key"+strconv.Itoa(i)] = i
	}
	_, err := Metadata(wide)
	assert.Error(t, err)
}

func TestMetadata_AllowsWellFormedNesting(t *testing.T) {
	out, err := Metadata(map[string]interface{}{
		"tags": []interface{}{"a", "b"},
		"nested": map[string]interface{}{
			"count": 3.0,
		},
	})
	require.NoError(t, err)
	assert.NotNil(t, out["tags"])
	assert.NotNil(t, out["nested"])
}
