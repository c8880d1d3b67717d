package instrumentation

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolInvocationLifecycle(t *testing.T) {
	ti := NewToolInvocation("get_blueprints").
		WithOwner("admin").
		WithMode("session").
		WithOperation("get_blueprints")

	require.NotEmpty(t, ti.CorrelationID)
	assert.False(t, ti.StartTime.IsZero())

	time.Sleep(time.Millisecond)
	ti.Complete(true, nil)

	assert.True(t, ti.Success)
	assert.Empty(t, ti.Error)
	assert.Greater(t, ti.Duration, time.Duration(0))
	assert.Equal(t, StatusSuccess, ti.Status())
}

func TestToolInvocationFailure(t *testing.T) {
	ti := NewToolInvocation("deploy")
	ti.Complete(false, errors.New("upstream rejected commit"))

	assert.False(t, ti.Success)
	assert.Equal(t, "upstream rejected commit", ti.Error)
	assert.Equal(t, StatusError, ti.Status())
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	a := NewToolInvocation("a")
	b := NewToolInvocation("a")
	assert.NotEqual(t, a.CorrelationID, b.CorrelationID)
}

func TestLogAttrsAnonymizesOwner(t *testing.T) {
	ti := NewToolInvocation("get_blueprints").WithOwner("admin")
	ti.Complete(true, nil)

	for _, attr := range ti.LogAttrs() {
		assert.NotContains(t, attr.Value.String(), "admin",
			"attr %s must not carry the raw owner", attr.Key)
	}
}

func TestLogAttrsOmitsEmptyFields(t *testing.T) {
	ti := NewToolInvocation("health")
	ti.Complete(true, nil)

	keys := make(map[string]bool)
	for _, attr := range ti.LogAttrs() {
		keys[attr.Key] = true
	}

	assert.True(t, keys["correlation_id"])
	assert.True(t, keys["tool"])
	assert.False(t, keys["owner"])
	assert.False(t, keys["operation"])
	assert.False(t, keys["trace_id"])
	assert.False(t, keys["error"])
}

func TestAuditLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)), true)

	ok := NewToolInvocation("get_blueprints")
	ok.Complete(true, nil)
	al.LogToolInvocation(ok)
	assert.Contains(t, buf.String(), "tool_executed")
	assert.Contains(t, buf.String(), "level=INFO")

	buf.Reset()
	failed := NewToolInvocation("deploy")
	failed.Complete(false, errors.New("boom"))
	al.LogToolInvocation(failed)
	assert.Contains(t, buf.String(), "tool_failed")
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "error=boom")
}

func TestAuditLoggerDisabled(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil)), false)

	ti := NewToolInvocation("get_blueprints")
	ti.Complete(true, nil)
	al.LogToolInvocation(ti)
	assert.Empty(t, buf.String())

	// A nil logger must also be safe to call.
	var nilLogger *AuditLogger
	nilLogger.LogToolInvocation(ti)
}

func TestGetTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}
