package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/fabricops/apstra-mcp/internal/logging"
)

// ToolInvocation captures one MCP tool call for the audit trail. The
// Owner field identifies the caller and is anonymized before logging.
type ToolInvocation struct {
	// CorrelationID links the audit entry to other log lines emitted
	// during the same tool call.
	CorrelationID string

	// Tool name as registered with the MCP server.
	Tool string

	// Owner is the session or credential owner, typically the Apstra
	// username. Anonymized in log output.
	Owner string

	// Mode is the authentication mode the call was dispatched under.
	Mode string

	// Operation is the upstream Apstra operation, when one was made.
	Operation string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation creates a ToolInvocation with timing started and a
// fresh correlation ID. Call Complete when the tool finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		CorrelationID: uuid.NewString(),
		Tool:          tool,
		StartTime:     time.Now(),
	}
}

// WithOwner sets the caller identity.
func (ti *ToolInvocation) WithOwner(owner string) *ToolInvocation {
	ti.Owner = owner
	return ti
}

// WithMode sets the authentication mode.
func (ti *ToolInvocation) WithMode(mode string) *ToolInvocation {
	ti.Mode = mode
	return ti
}

// WithOperation sets the upstream fabric operation name.
func (ti *ToolInvocation) WithOperation(operation string) *ToolInvocation {
	ti.Operation = operation
	return ti
}

// WithSpanContext extracts trace context from the current span.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		ti.TraceID = span.SpanContext().TraceID().String()
		ti.SpanID = span.SpanContext().SpanID().String()
	}
	return ti
}

// Complete marks the invocation finished and records its duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns "success" or "error" for metric labels.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the audit entry. The owner is
// anonymized so audit logs stay free of raw usernames.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("correlation_id", ti.CorrelationID),
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}

	if ti.Owner != "" {
		attrs = append(attrs, logging.Owner(logging.AnonymizeOwner(ti.Owner)))
	}
	if ti.Mode != "" {
		attrs = append(attrs, slog.String("mode", ti.Mode))
	}
	if ti.Operation != "" {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}

	return attrs
}

// AuditLogger writes the audit trail of tool invocations.
type AuditLogger struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditLogger creates an AuditLogger on the given logger.
func NewAuditLogger(logger *slog.Logger, enabled bool) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{logger: logger, enabled: enabled}
}

// LogToolInvocation writes one audit entry. Successful calls log at
// Info, failures at Warn.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	attrs := ti.LogAttrs()
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}

// GetTraceID extracts the trace ID from the current span in ctx.
// Returns an empty string when no valid span is present.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
