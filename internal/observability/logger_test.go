package observability

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	fn()

	require.NoError(t, w.Close())
	os.Stderr = original

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func TestParseLevel_MapsKnownStringsAndDefaultsToInfo(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warn"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel("error"))
	assert.Equal(t, LogLevelFatal, ParseLevel("fatal"))
	assert.Equal(t, LogLevelInfo, ParseLevel("nonsense"))
}

func TestStandardLogger_DebugSuppressedBelowInfoLevel(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewStandardLogger("test", "text")
		logger.Debug("should not appear", nil)
		logger.Info("should appear", nil)
	})

	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestStandardLogger_WithLevelRaisesThreshold(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewStandardLogger("test", "text").WithLevel(LogLevelError)
		logger.Warn("should not appear", nil)
		logger.Error("should appear", nil)
	})

	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "should appear")
}

func TestStandardLogger_WithMergesFields(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewStandardLogger("test", "text").With(map[string]interface{}{"request_id": "abc"})
		logger.Info("hello", map[string]interface{}{"status": 200})
	})

	assert.Contains(t, out, "request_id=abc")
	assert.Contains(t, out, "status=200")
}

func TestStandardLogger_JSONFormatProducesParseableFields(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewStandardLogger("test", "json")
		logger.Info("hello", map[string]interface{}{"key": "value"})
	})

	assert.True(t, strings.Contains(out, `"msg":"hello"`))
	assert.True(t, strings.Contains(out, `"key":"value"`))
}

func TestStandardLogger_WithPrefixChangesLoggerName(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewStandardLogger("original", "text").WithPrefix("renamed")
		logger.Info("hello", nil)
	})

	assert.Contains(t, out, "[renamed]")
	assert.NotContains(t, out, "[original]")
}

func TestNewLogger_DefaultsPrefixWhenEmpty(t *testing.T) {
	out := captureStderr(t, func() {
		logger := NewLogger("", "text")
		logger.Info("hello", nil)
	})

	assert.Contains(t, out, "[memoryd]")
}

func TestNoopLogger_NeverPanicsAndChainsFluently(t *testing.T) {
	logger := NewNoopLogger()
	logger.Debug("x", nil)
	logger.Info("x", nil)
	logger.Warn("x", nil)
	logger.Error("x", nil)
	assert.Same(t, logger, logger.With(map[string]interface{}{"a": 1}))
	assert.Same(t, logger, logger.WithPrefix("y"))
}
