package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_AppliesDefaultsWhenNoFileOrEnv(t *testing.T) {
	t.Setenv("MEMORYD_CONFIG_FILE", "does-not-exist.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.ListenAddress)
	assert.Equal(t, 15*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, int64(1048576), cfg.Server.RequestMaxBytes)
	assert.Equal(t, "", cfg.Server.JWTSecret)

	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
	assert.False(t, cfg.Embedding.Async)

	assert.Equal(t, 30, cfg.Retention.MaxAgeDays)
	assert.Equal(t, []string{"*"}, cfg.Retention.Tenants)

	assert.Equal(t, "200/minute", cfg.RateLimit.Global)
	assert.Equal(t, "120/minute", cfg.RateLimit.Tenant)

	assert.Equal(t, 8, cfg.Retrieval.MaxResults)
}

func TestLoad_EnvironmentVariablesOverrideDefaults(t *testing.T) {
	t.Setenv("MEMORYD_CONFIG_FILE", "does-not-exist.yaml")
	t.Setenv("MEMORYD_EMBEDDING_PROVIDER", "local")
	t.Setenv("MEMORYD_SERVER_LISTEN_ADDRESS", ":9999")
	t.Setenv("MEMORYD_RETENTION_MAX_AGE_DAYS", "7")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Embedding.Provider)
	assert.Equal(t, ":9999", cfg.Server.ListenAddress)
	assert.Equal(t, 7, cfg.Retention.MaxAgeDays)
}
