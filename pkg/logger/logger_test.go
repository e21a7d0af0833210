package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{"thread_id", "abc", "api_key", "sk-123", "Authorization", "Bearer x", "dangling"})

	assert.Equal(t, []interface{}{"thread_id", "abc", "api_key", redacted, "Authorization", redacted, "dangling"}, out)
}

func TestLoggerWritesRedactedFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("service", "test").Info("calling llm", "password", "hunter2", "model", "m1")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "test", fields["service"])
		assert.Equal(t, redacted, fields["password"])
		assert.Equal(t, "m1", fields["model"])
	}
}

func TestNewModes(t *testing.T) {
	for _, mode := range []string{"development", "production"} {
		l, err := New(mode)
		assert.NoError(t, err)
		assert.NotNil(t, l)
	}
	NewNop().Info("discarded")
}
