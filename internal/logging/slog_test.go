package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeToken(t *testing.T) {
	assert.Equal(t, "<empty>", SanitizeToken(""))
	assert.Equal(t, "[token:43 chars]", SanitizeToken(strings.Repeat("x", 43)))

	// No part of the token value leaks through.
	masked := SanitizeToken("super-secret-token")
	assert.NotContains(t, masked, "super")
	assert.NotContains(t, masked, "secret")
}

func TestAnonymizeOwner(t *testing.T) {
	assert.Empty(t, AnonymizeOwner(""))

	a := AnonymizeOwner("admin")
	assert.True(t, strings.HasPrefix(a, "owner:"))
	assert.NotContains(t, a, "admin")

	// Stable for correlation, distinct across owners.
	assert.Equal(t, a, AnonymizeOwner("admin"))
	assert.NotEqual(t, a, AnonymizeOwner("alice"))
}

func TestErr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	logger.Info("op failed", Err(errors.New("boom")))
	assert.Contains(t, buf.String(), "error=boom")

	buf.Reset()
	logger.Info("op ok", Err(nil))
	assert.NotContains(t, buf.String(), "error=")
}

func TestAttrHelpers(t *testing.T) {
	assert.Equal(t, slog.String(KeyOperation, "deploy"), Operation("deploy"))
	assert.Equal(t, slog.String(KeyTool, "get_blueprints"), Tool("get_blueprints"))
	assert.Equal(t, slog.String(KeyMode, "session"), Mode("session"))
	assert.Equal(t, slog.String(KeyStatus, StatusSuccess), Status(StatusSuccess))
}
