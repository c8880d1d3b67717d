package apstra

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fabricops/apstra-mcp/internal/logging"
)

const (
	// DefaultTimeout bounds every request so a hung upstream cannot
	// hang the caller indefinitely.
	DefaultTimeout = 30 * time.Second

	authTokenHeader = "AuthToken"

	// maxErrorBody caps how much of an upstream error body is carried
	// into error messages.
	maxErrorBody = 4096
)

// Client talks to one Apstra server. A client is bound to a base URL and,
// after Login or SetToken, carries the AuthToken attached to every call.
type Client struct {
	baseURL string
	httpc   *http.Client
	token   string
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpc.Timeout = timeout
	}
}

// WithInsecureTLS disables verification of the server certificate.
// Apstra appliances routinely run with self-signed certificates.
func WithInsecureTLS(insecure bool) Option {
	return func(c *Client) {
		if insecure {
			c.httpc.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, // #nosec G402
			}
		}
	}
}

// WithLogger sets the logger used for request-level debug logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client for the Apstra API rooted at baseURL
// (e.g. "https://10.0.0.1:443").
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL the client is bound to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the upstream AuthToken, or "" before login.
func (c *Client) Token() string {
	return c.token
}

// SetToken resumes a previously obtained AuthToken without a new login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login exchanges credentials for an AuthToken. Exactly one round trip;
// any non-201 response is an AuthError. The token is retained on the
// client for subsequent calls and also returned for callers that cache it.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/user/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build login request: %w", err)
	}
	setCommonHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", &TransportError{Op: "login", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode != http.StatusCreated {
		return "", &AuthError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if parsed.Token == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "login response contained no token"}
	}

	c.token = parsed.Token
	c.logger.Debug("apstra login succeeded",
		logging.Operation("login"),
		slog.String("server", c.baseURL),
		slog.String("token", logging.SanitizeToken(parsed.Token)))
	return parsed.Token, nil
}

// do performs one authorized API call. reqBody and out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, reqBody, out interface{}) error {
	var reader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	setCommonHeaders(req)
	if c.token != "" {
		req.Header.Set(authTokenHeader, c.token)
	}

	start := time.Now()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("apstra api call",
		logging.Operation(op),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &UpstreamError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func setCommonHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
}
