// Package server holds the MCP server runtime: the ServerContext that
// dispatches tool calls to authenticated Apstra API clients across the
// three auth modes, the streamable HTTP transport, health check
// endpoints, and the Prometheus metrics server.
package server
