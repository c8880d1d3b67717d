// Package instrumentation wires OpenTelemetry metrics and tracing for the
// MCP server: tool invocation counters, Apstra API operation timings,
// authentication and session lifecycle events, and an audit log of every
// tool call. Metrics are exported via Prometheus by default; OTLP and
// stdout exporters are available for collector-based setups and debugging.
package instrumentation
