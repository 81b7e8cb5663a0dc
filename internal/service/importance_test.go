package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/convomesh/memoryd/internal/store"
)

func TestScoreImportance_RecentOutscoresOld(t *testing.T) {
	now := time.Now().UTC()
	recent := scoreImportance(now, now, store.RoleSystem)
	old := scoreImportance(now.Add(-48*time.Hour), now, store.RoleAssistant)
	assert.Greater(t, recent, old)
}

func TestScoreImportance_BoundedToUnitInterval(t *testing.T) {
	now := time.Now().UTC()
	v := scoreImportance(now, now, store.RoleSystem)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 1.0)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-5))
	assert.Equal(t, 1.0, clamp01(5))
	assert.Equal(t, 0.5, clamp01(0.5))
}
