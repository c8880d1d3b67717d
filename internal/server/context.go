package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fabricops/apstra-mcp/internal/apstra"
	"github.com/fabricops/apstra-mcp/internal/config"
	"github.com/fabricops/apstra-mcp/internal/instrumentation"
	"github.com/fabricops/apstra-mcp/internal/logging"
	"github.com/fabricops/apstra-mcp/internal/session"
)

// ClientFactory builds an API client for a resolved credential tuple.
// Injectable so tests can point clients at a local test server.
type ClientFactory func(creds config.Credentials) *apstra.Client

// Options configures a ServerContext.
type Options struct {
	// Mode selects credential sourcing; see config.Mode.
	Mode config.Mode

	// File is the parsed configuration file, or nil when none was found.
	File *config.File

	// SessionTTL is the idle lifetime of remote sessions. Zero uses the
	// config file value, falling back to session.DefaultTTL.
	SessionTTL time.Duration

	// Logger for dispatch and lifecycle logging. Nil uses slog.Default.
	Logger *slog.Logger

	// ClientFactory overrides API client construction. Nil uses the
	// config file's TLS and timeout settings.
	ClientFactory ClientFactory
}

// ServerContext holds the shared state behind every MCP tool: the
// authentication mode, the session store, and the cached upstream client
// for the local modes. It is safe for concurrent use; the internal lock
// is never held across network I/O.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mode    config.Mode
	file    *config.File
	factory ClientFactory
	logger  *slog.Logger

	sessions *session.Store

	metrics *instrumentation.Metrics
	audit   *instrumentation.AuditLogger

	mu sync.RWMutex
	// sharedClient is the lazily logged-in client reused across calls in
	// the local modes. Nil until first use and after a 401 eviction.
	sharedClient *apstra.Client
	shutdown     bool
}

// NewServerContext creates a server context for the given mode. In
// session mode a session store with background sweeper is started; call
// Shutdown to stop it.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if !opts.Mode.Valid() {
		return nil, fmt.Errorf("invalid auth mode %q", opts.Mode)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.File == nil {
		opts.File = &config.File{}
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	sc := &ServerContext{
		ctx:     shutdownCtx,
		cancel:  cancel,
		mode:    opts.Mode,
		file:    opts.File,
		factory: opts.ClientFactory,
		logger:  opts.Logger,
	}
	if sc.factory == nil {
		sc.factory = sc.defaultClientFactory
	}

	if opts.Mode == config.ModeRemoteSession {
		ttl := opts.SessionTTL
		if ttl == 0 && opts.File.SessionTTLSeconds > 0 {
			ttl = time.Duration(opts.File.SessionTTLSeconds) * time.Second
		}
		sc.sessions = session.NewStore(ttl, opts.Logger)
	}

	return sc, nil
}

func (sc *ServerContext) defaultClientFactory(creds config.Credentials) *apstra.Client {
	clientOpts := []apstra.Option{
		apstra.WithInsecureTLS(sc.file.InsecureSkipTLSVerify),
		apstra.WithLogger(sc.logger),
	}
	if sc.file.RequestTimeoutSeconds > 0 {
		clientOpts = append(clientOpts, apstra.WithTimeout(time.Duration(sc.file.RequestTimeoutSeconds)*time.Second))
	}
	return apstra.NewClient(creds.BaseURL(), clientOpts...)
}

// Context returns the server's lifecycle context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Mode returns the authentication mode the server runs in.
func (sc *ServerContext) Mode() config.Mode {
	return sc.mode
}

// SetInstrumentation attaches the metrics recorder and audit logger.
// Both may be nil.
func (sc *ServerContext) SetInstrumentation(metrics *instrumentation.Metrics, audit *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
	sc.audit = audit
}

// Metrics returns the attached metrics recorder, possibly nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// AuditLogger returns the attached audit logger, possibly nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.audit
}

// SessionTTL returns the configured session idle lifetime, or zero in
// the local modes.
func (sc *ServerContext) SessionTTL() time.Duration {
	if sc.sessions == nil {
		return 0
	}
	return sc.sessions.TTL()
}

// ActiveSessionCount returns the number of stored sessions. Always zero
// in the local modes.
func (sc *ServerContext) ActiveSessionCount() int {
	if sc.sessions == nil {
		return 0
	}
	return sc.sessions.Count()
}

// SessionStatus describes the caller's authentication state for the
// session_info tool. Produced in every mode; SessionError carries the
// reason when a supplied token did not resolve to a live session.
type SessionStatus struct {
	Mode          config.Mode
	Authenticated bool
	Owner         string
	Host          string
	CreatedAt     time.Time
	ExpiresIn     time.Duration
	SessionError  string
}

// Login resolves credentials, authenticates against the Apstra server,
// and creates a session. Only valid in session mode; the local modes
// authenticate implicitly on first dispatch.
func (sc *ServerContext) Login(ctx context.Context, explicit *config.Credentials) (string, time.Duration, error) {
	if sc.mode != config.ModeRemoteSession {
		return "", 0, fmt.Errorf("login is only available in session mode (current mode: %s)", sc.mode)
	}

	creds, err := config.Resolve(sc.mode, explicit, nil, sc.file)
	if err != nil {
		return "", 0, err
	}

	client := sc.factory(creds)
	upstreamToken, err := client.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		sc.Metrics().RecordAuthAttempt(ctx, string(sc.mode), instrumentation.StatusError)
		return "", 0, err
	}
	sc.Metrics().RecordAuthAttempt(ctx, string(sc.mode), instrumentation.StatusSuccess)

	token, err := sc.sessions.Create(creds.Username, creds, upstreamToken)
	if err != nil {
		return "", 0, err
	}
	sc.Metrics().RecordSessionEvent(ctx, instrumentation.SessionEventCreated)
	sc.Metrics().IncrementActiveSessions(ctx)

	sc.logger.Info("session established",
		logging.Mode(string(sc.mode)),
		logging.Owner(logging.AnonymizeOwner(creds.Username)),
		slog.String("server", creds.Host))

	return token, sc.sessions.TTL(), nil
}

// Logout invalidates a session. Unknown tokens are not an error; the
// call reports whether a session was actually removed.
func (sc *ServerContext) Logout(ctx context.Context, token string) (bool, error) {
	if sc.mode != config.ModeRemoteSession {
		return false, fmt.Errorf("logout is only available in session mode (current mode: %s)", sc.mode)
	}
	removed := sc.sessions.Invalidate(token)
	if removed {
		sc.Metrics().RecordSessionEvent(ctx, instrumentation.SessionEventInvalidated)
		sc.Metrics().DecrementActiveSessions(ctx)
	}
	return removed, nil
}

// SessionStatus reports authentication state in every mode. In the local
// modes it reflects whether the shared client has logged in; in session
// mode it inspects the supplied token without refreshing its last-used
// time. An absent, unknown or expired token reports Authenticated false
// rather than an error.
func (sc *ServerContext) SessionStatus(token string) SessionStatus {
	status := SessionStatus{Mode: sc.mode}

	if sc.mode != config.ModeRemoteSession {
		sc.mu.RLock()
		client := sc.sharedClient
		sc.mu.RUnlock()
		if client == nil {
			return status
		}
		status.Authenticated = true
		if creds, err := config.Resolve(sc.mode, nil, config.OSEnv, sc.file); err == nil {
			status.Owner = creds.Username
			status.Host = creds.Host
		}
		return status
	}

	if token == "" {
		return status
	}
	rec, err := sc.sessions.Peek(token)
	if err != nil {
		status.SessionError = err.Error()
		return status
	}
	status.Authenticated = true
	status.Owner = rec.Owner
	status.Host = rec.Credentials.Host
	status.CreatedAt = rec.CreatedAt
	status.ExpiresIn = sc.sessions.ExpiresIn(rec)
	return status
}

// Dispatch resolves an authenticated client for the caller and runs fn
// with it. In the local modes sessionToken is ignored and a cached
// shared client is used, logging in lazily on first call. In session
// mode the token must name a live session.
//
// A 401 from the upstream invalidates the cached client or session so
// the next call re-authenticates. The failed call is never retried.
func (sc *ServerContext) Dispatch(ctx context.Context, sessionToken, op string, fn func(ctx context.Context, client *apstra.Client) error) error {
	start := time.Now()
	err := sc.dispatch(ctx, sessionToken, fn)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	sc.Metrics().RecordFabricOperation(ctx, op, status, time.Since(start))

	return err
}

func (sc *ServerContext) dispatch(ctx context.Context, sessionToken string, fn func(ctx context.Context, client *apstra.Client) error) error {
	if sc.mode == config.ModeRemoteSession {
		return sc.dispatchSession(ctx, sessionToken, fn)
	}
	return sc.dispatchLocal(ctx, fn)
}

func (sc *ServerContext) dispatchLocal(ctx context.Context, fn func(ctx context.Context, client *apstra.Client) error) error {
	client, err := sc.localClient(ctx)
	if err != nil {
		return err
	}

	err = fn(ctx, client)
	if apstra.IsUnauthorized(err) {
		// Token expired upstream. Drop the cached client so the next
		// call performs a fresh login.
		sc.mu.Lock()
		if sc.sharedClient == client {
			sc.sharedClient = nil
		}
		sc.mu.Unlock()
		sc.logger.Warn("upstream token rejected, dropping cached client", logging.Mode(string(sc.mode)))
	}
	return err
}

// localClient returns the cached shared client, logging in first when
// none exists. The lock only guards the pointer; login happens outside
// it, so two concurrent first calls may both login and one result wins.
func (sc *ServerContext) localClient(ctx context.Context) (*apstra.Client, error) {
	sc.mu.RLock()
	client := sc.sharedClient
	sc.mu.RUnlock()
	if client != nil {
		return client, nil
	}

	creds, err := config.Resolve(sc.mode, nil, config.OSEnv, sc.file)
	if err != nil {
		return nil, err
	}

	client = sc.factory(creds)
	if _, err := client.Login(ctx, creds.Username, creds.Password); err != nil {
		sc.Metrics().RecordAuthAttempt(ctx, string(sc.mode), instrumentation.StatusError)
		return nil, err
	}
	sc.Metrics().RecordAuthAttempt(ctx, string(sc.mode), instrumentation.StatusSuccess)

	sc.mu.Lock()
	sc.sharedClient = client
	sc.mu.Unlock()
	return client, nil
}

func (sc *ServerContext) dispatchSession(ctx context.Context, sessionToken string, fn func(ctx context.Context, client *apstra.Client) error) error {
	if sessionToken == "" {
		return fmt.Errorf("session_token is required in session mode: %w", session.ErrNotFound)
	}

	rec, err := sc.sessions.Resolve(sessionToken)
	if err != nil {
		if errors.Is(err, session.ErrExpired) {
			sc.Metrics().RecordSessionEvent(ctx, instrumentation.SessionEventExpired)
			sc.Metrics().DecrementActiveSessions(ctx)
		}
		return err
	}

	client := sc.factory(rec.Credentials)
	client.SetToken(rec.UpstreamToken)

	err = fn(ctx, client)
	if apstra.IsUnauthorized(err) {
		// The upstream no longer honors this session's token, so the
		// session itself is no longer usable. Remove it; the caller
		// must login again.
		if sc.sessions.Invalidate(sessionToken) {
			sc.Metrics().RecordSessionEvent(ctx, instrumentation.SessionEventInvalidated)
			sc.Metrics().DecrementActiveSessions(ctx)
		}
		sc.logger.Warn("upstream rejected session token, session invalidated",
			logging.Owner(logging.AnonymizeOwner(rec.Owner)))
		return fmt.Errorf("upstream authentication expired: %w", session.ErrNotFound)
	}
	return err
}

// VerifyStartupAuth probes the upstream login in the local modes so
// misconfiguration surfaces at startup rather than on the first tool
// call. Failures are logged, not fatal: the Apstra server may simply be
// unreachable at boot.
func (sc *ServerContext) VerifyStartupAuth(ctx context.Context) {
	if sc.mode == config.ModeRemoteSession {
		return
	}
	if _, err := sc.localClient(ctx); err != nil {
		sc.logger.Warn("startup authentication probe failed, will retry on first tool call",
			logging.Mode(string(sc.mode)),
			logging.Err(err))
	}
}

// IsShutdown returns whether the server has been shut down.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown stops the session sweeper and cancels the lifecycle context.
// Idempotent.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true

	if sc.sessions != nil {
		sc.sessions.Stop()
	}
	sc.cancel()
	return nil
}
