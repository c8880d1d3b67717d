package server

import (
	"context"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fabricops/apstra-mcp/internal/instrumentation"
)

// HTTPServer exposes the MCP server over streamable HTTP at /mcp,
// alongside the health endpoints. In session mode this is the transport
// remote callers authenticate through via the login tool.
type HTTPServer struct {
	mcpServer  *mcpserver.MCPServer
	health     *HealthChecker
	metrics    *instrumentation.Metrics
	httpServer *http.Server

	// certFile and keyFile enable TLS when both are set.
	certFile string
	keyFile  string
}

// HTTPServerConfig holds configuration for the HTTP transport.
type HTTPServerConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// CertFile and KeyFile enable TLS when both are non-empty.
	CertFile string
	KeyFile  string

	// Health registers /healthz, /readyz and /healthz/detailed when set.
	Health *HealthChecker

	// Metrics records per-request HTTP metrics when set.
	Metrics *instrumentation.Metrics
}

// NewHTTPServer wraps an MCP server with the HTTP transport.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, config HTTPServerConfig) *HTTPServer {
	s := &HTTPServer{
		mcpServer: mcpServer,
		health:    config.Health,
		metrics:   config.Metrics,
		certFile:  config.CertFile,
		keyFile:   config.KeyFile,
	}

	mux := http.NewServeMux()

	streamable := mcpserver.NewStreamableHTTPServer(mcpServer,
		mcpserver.WithEndpointPath("/mcp"),
	)
	mux.Handle("/mcp", s.instrumented("/mcp", streamable))

	if s.health != nil {
		s.health.RegisterHealthEndpoints(mux)
	}

	s.httpServer = &http.Server{
		Addr:              config.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards to the underlying writer so streaming responses work
// through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// instrumented wraps a handler with HTTP request metrics.
func (s *HTTPServer) instrumented(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}

// Start starts the HTTP server. Blocks until the server stops.
func (s *HTTPServer) Start() error {
	if s.certFile != "" && s.keyFile != "" {
		return s.httpServer.ListenAndServeTLS(s.certFile, s.keyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *HTTPServer) Addr() string {
	return s.httpServer.Addr
}
