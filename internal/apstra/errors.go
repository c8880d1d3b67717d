package apstra

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError is returned when the Apstra login endpoint rejects the
// supplied credentials. The password is never included.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("authentication failed: apstra returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("authentication failed: apstra returned status %d", e.Status)
}

// UpstreamError is a non-2xx response from an authorized API call. The
// upstream status and body are carried verbatim so callers can diagnose
// failures without server-side log access.
type UpstreamError struct {
	Op     string
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: apstra returned status %d: %s", e.Op, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: apstra returned status %d", e.Op, e.Status)
}

// TransportError is a network-level failure reaching the Apstra server:
// connection refused, DNS failure, or a timed-out request. Transport
// failures are never retried.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: failed to reach apstra: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err indicates the upstream token was
// rejected. Callers use this to evict the session or cached token that
// produced the request.
func IsUnauthorized(err error) bool {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Status == http.StatusUnauthorized
	}
	return false
}
