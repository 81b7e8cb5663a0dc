package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_IssueThenValidateRoundTrips(t *testing.T) {
	v := NewValidator([]byte("test-secret"), "memoryd-test")
	token, err := v.IssueToken("tenant-1", time.Hour)
	require.NoError(t, err)

	claims, err := v.ValidateBearer("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.TenantID)
}

func TestValidator_RejectsMalformedHeader(t *testing.T) {
	v := NewValidator([]byte("test-secret"), "memoryd-test")
	_, err := v.ValidateBearer("not-a-bearer-token")
	assert.Error(t, err)
}

func TestValidator_RejectsTokenSignedWithDifferentSecret(t *testing.T) {
	issuer := NewValidator([]byte("secret-a"), "memoryd-test")
	verifier := NewValidator([]byte("secret-b"), "memoryd-test")

	token, err := issuer.IssueToken("tenant-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.ValidateBearer("Bearer " + token)
	assert.Error(t, err)
}

func TestValidator_Enabled(t *testing.T) {
	assert.False(t, NewValidator(nil, "").Enabled())
	assert.True(t, NewValidator([]byte("x"), "").Enabled())
}
