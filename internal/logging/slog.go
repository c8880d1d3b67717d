package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyTool      = "tool"
	KeyMode      = "mode"
	KeyOwner     = "owner"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyDuration  = "duration"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Mode returns a slog attribute for the authentication mode.
func Mode(mode string) slog.Attr {
	return slog.String(KeyMode, mode)
}

// Owner returns a slog attribute for the session owner identity.
func Owner(owner string) slog.Attr {
	return slog.String(KeyOwner, owner)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error. A nil error yields an empty
// group that slog omits from output, so Err(maybeNil) is always safe.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// SanitizeToken returns a masked representation of a token for logging.
// Only the length is exposed; even short prefixes of bearer tokens can
// aid attacks.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}

// AnonymizeOwner returns a stable hashed identifier for an owner identity,
// allowing log correlation without recording who the caller was.
func AnonymizeOwner(owner string) string {
	if owner == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(owner))
	return "owner:" + hex.EncodeToString(sum[:8])
}
