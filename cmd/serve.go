package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fabricops/apstra-mcp/internal/config"
	"github.com/fabricops/apstra-mcp/internal/instrumentation"
	"github.com/fabricops/apstra-mcp/internal/server"
	"github.com/fabricops/apstra-mcp/internal/tools/blueprint_tools"
	"github.com/fabricops/apstra-mcp/internal/tools/network_tools"
	"github.com/fabricops/apstra-mcp/internal/tools/session_tools"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool

	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		debugMode      bool
		transport      string
		httpAddr       string
		configFile     string
		authMode       string
		sessionTTL     int
		requestTimeout int
		insecureTLS    bool
		yolo           bool
		// TLS/HTTPS support
		tlsCertFile string
		tlsKeyFile  string
		// Metrics server configuration
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server exposing Juniper Apstra
fabric operations for AI assistants.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Authentication Modes:
  - shared:  one credential tuple from the config file, shared by every
             caller (default for stdio)
  - env:     credentials from APSTRA_SERVER, APSTRA_PORT, APSTRA_USERNAME
             and APSTRA_PASSWORD, falling back to the config file per field
  - session: each caller logs in through the login tool and passes the
             returned session token with every call (default for
             streamable-http)

Safety Mode:
  By default, the server operates in read-only mode, providing only safe
  fabric queries. Use --yolo to enable mutating operations (blueprint
  creation and deletion, deployment, virtual network changes).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Resolve the mode default from the transport when not set
			if authMode == "" {
				if transport == "stdio" {
					authMode = string(config.ModeLocalShared)
				} else {
					authMode = string(config.ModeRemoteSession)
				}
			}

			// Load TLS paths from environment if not provided via flags
			if tlsCertFile == "" {
				tlsCertFile = os.Getenv("TLS_CERT_FILE")
			}
			if tlsKeyFile == "" {
				tlsKeyFile = os.Getenv("TLS_KEY_FILE")
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    metricsAddr,
			}

			opts := serveOptions{
				transport:      transport,
				debugMode:      debugMode,
				httpAddr:       httpAddr,
				configFile:     configFile,
				configFileSet:  cmd.Flags().Changed("config-file"),
				authMode:       config.Mode(authMode),
				sessionTTL:     sessionTTL,
				requestTimeout: requestTimeout,
				insecureTLS:    insecureTLS,
				insecureSet:    cmd.Flags().Changed("insecure-skip-tls-verify"),
				timeoutSet:     cmd.Flags().Changed("request-timeout"),
				yolo:           yolo,
				tlsCertFile:    tlsCertFile,
				tlsKeyFile:     tlsKeyFile,
				metrics:        metricsConfig,
			}
			return runServe(opts)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().StringVarP(&configFile, "config-file", "f", config.DefaultConfigFile, "Path to the Apstra config file (JSON or YAML)")
	cmd.Flags().StringVar(&authMode, "auth-mode", "", "Authentication mode: shared, env or session. Defaults to shared for stdio and session for streamable-http.")
	cmd.Flags().IntVar(&sessionTTL, "session-ttl", 0, "Session idle lifetime in seconds (session mode). 0 uses the config file value, default 3600.")
	cmd.Flags().IntVar(&requestTimeout, "request-timeout", 0, "Apstra API request timeout in seconds. 0 uses the config file value, default 30.")
	cmd.Flags().BoolVar(&insecureTLS, "insecure-skip-tls-verify", true, "Skip verification of the Apstra server certificate. Apstra appliances commonly use self-signed certificates.")
	cmd.Flags().BoolVar(&yolo, "yolo", false, "Enable mutating operations (blueprint create/delete, deploy, network changes). Default is read-only mode.")

	// TLS flags for HTTPS support
	cmd.Flags().StringVar(&tlsCertFile, "tls-cert-file", "", "Path to TLS certificate file (PEM format). If provided with --tls-key-file, enables HTTPS. Can also use TLS_CERT_FILE env var.")
	cmd.Flags().StringVar(&tlsKeyFile, "tls-key-file", "", "Path to TLS private key file (PEM format). If provided with --tls-cert-file, enables HTTPS. Can also use TLS_KEY_FILE env var.")

	// Metrics server flags
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

type serveOptions struct {
	transport      string
	debugMode      bool
	httpAddr       string
	configFile     string
	configFileSet  bool
	authMode       config.Mode
	sessionTTL     int
	requestTimeout int
	insecureTLS    bool
	insecureSet    bool
	timeoutSet     bool
	yolo           bool
	tlsCertFile    string
	tlsKeyFile     string
	metrics        MetricsConfig
}

func runServe(opts serveOptions) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Logs go to stderr: with the stdio transport, stdout carries the
	// MCP protocol stream.
	logLevel := slog.LevelInfo
	if opts.debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if !opts.authMode.Valid() {
		return fmt.Errorf("invalid auth mode %q (valid: shared, env, session)", opts.authMode)
	}

	// Load the config file. A missing default file is fine for the env
	// and session modes, where credentials come from elsewhere.
	cfgFile, err := config.Load(opts.configFile)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load config file: %w", err)
		}
		if opts.configFileSet || opts.authMode == config.ModeLocalShared {
			return fmt.Errorf("config file %s not found", opts.configFile)
		}
		logger.Debug("no config file found, relying on environment and explicit credentials",
			slog.String("path", opts.configFile))
		cfgFile = &config.File{}
	}

	// Flag overrides win over file values
	if opts.insecureSet {
		cfgFile.InsecureSkipTLSVerify = opts.insecureTLS
	}
	if opts.timeoutSet && opts.requestTimeout > 0 {
		cfgFile.RequestTimeoutSeconds = opts.requestTimeout
	}

	// Load metrics config from environment if not set via flags
	if !opts.metrics.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			opts.metrics.Enabled = true
		}
	}
	if opts.metrics.Addr == "" || opts.metrics.Addr == server.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			opts.metrics.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if opts.transport != "stdio" && opts.metrics.Enabled && provider.Enabled() {
		var err error
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metrics.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		// Wait for metrics server to be ready or fail
		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	// Create server context
	serverContext, err := server.NewServerContext(shutdownCtx, server.Options{
		Mode:       opts.authMode,
		File:       cfgFile,
		SessionTTL: time.Duration(opts.sessionTTL) * time.Second,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetInstrumentation(provider.Metrics(),
			instrumentation.NewAuditLogger(logger, instrConfig.AuditEnabled))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if opts.transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Probe upstream authentication in the local modes so credential
	// problems surface now instead of on the first tool call.
	serverContext.VerifyStartupAuth(shutdownCtx)

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("apstra-mcp", version,
		mcpserver.WithToolCapabilities(true),
	)

	// readOnly is the inverse of yolo
	readOnly := !opts.yolo

	// Log the mode for visibility (only for non-stdio transports)
	if opts.transport != "stdio" {
		if readOnly {
			log.Println("Starting server in READ-ONLY mode (use --yolo to enable mutating operations)")
		} else {
			log.Println("Starting server with MUTATING operations enabled (--yolo flag is set)")
		}
		log.Printf("Authentication mode: %s", opts.authMode)
	}

	// Register all tools
	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	// Start the appropriate server based on transport type
	switch opts.transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "streamable-http":
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, serverContext, provider, opts)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

// registerAllTools registers all MCP tools
func registerAllTools(mcpSrv *mcpserver.MCPServer, ctx *server.ServerContext, readOnly bool) error {
	type toolRegistration struct {
		name     string
		register func() error
	}

	registrations := []toolRegistration{
		{
			name: "Session",
			register: func() error {
				return session_tools.RegisterSessionTools(mcpSrv, ctx, version)
			},
		},
		{
			name: "Blueprint",
			register: func() error {
				return blueprint_tools.RegisterBlueprintTools(mcpSrv, ctx, readOnly)
			},
		},
		{
			name: "Network",
			register: func() error {
				return network_tools.RegisterNetworkTools(mcpSrv, ctx, readOnly)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s tools: %w", reg.name, err)
		}
	}

	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, serverContext *server.ServerContext, provider *instrumentation.Provider, opts serveOptions) error {
	healthChecker := server.NewHealthChecker(serverContext)

	httpServer := server.NewHTTPServer(mcpSrv, server.HTTPServerConfig{
		Addr:     opts.httpAddr,
		CertFile: opts.tlsCertFile,
		KeyFile:  opts.tlsKeyFile,
		Health:   healthChecker,
		Metrics:  provider.Metrics(),
	})

	scheme := "http"
	if opts.tlsCertFile != "" && opts.tlsKeyFile != "" {
		scheme = "https"
	}
	log.Printf("Streamable HTTP server starting on %s (%s)", opts.httpAddr, scheme)
	log.Printf("  MCP endpoint: /mcp")
	log.Printf("  Health endpoints: /healthz, /readyz, /healthz/detailed")
	if opts.metrics.Enabled {
		log.Printf("  Metrics endpoint: %s/metrics", opts.metrics.Addr)
	}
	if serverContext.Mode() == config.ModeRemoteSession {
		log.Printf("Session mode: clients authenticate via the login tool; sessions expire after %s idle", serverContext.SessionTTL())
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.Start(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		log.Println("HTTP server stopped normally")
	}

	log.Println("HTTP server gracefully stopped")
	return nil
}
