package apstra

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer runs an httptest server with a stub login endpoint and
// the given extra handlers.
func newTestServer(t *testing.T, handlers map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["username"] != "admin" || body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors": "invalid credentials"}`))
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token": "upstream-token-1"}`))
	})
	for path, handler := range handlers {
		mux.HandleFunc(path, handler)
	}

	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)

	return srv, NewClient(srv.URL, WithInsecureTLS(true))
}

func TestLogin(t *testing.T) {
	_, client := newTestServer(t, nil)

	token, err := client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, "upstream-token-1", token)
	assert.Equal(t, "upstream-token-1", client.Token())
}

func TestLoginRejected(t *testing.T) {
	_, client := newTestServer(t, nil)

	_, err := client.Login(context.Background(), "admin", "wrong")
	require.Error(t, err)

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Empty(t, client.Token(), "failed login must not retain a token")
}

func TestLoginNon201Success(t *testing.T) {
	// A 200 from the login endpoint is not a valid login response.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/user/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"token": "t"}`))
	})
	srv := httptest.NewTLSServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithInsecureTLS(true))
	_, err := client.Login(context.Background(), "admin", "secret")

	var authErr *AuthError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, http.StatusOK, authErr.Status)
}

func TestRequestHeaders(t *testing.T) {
	var gotHeaders http.Header
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints": func(w http.ResponseWriter, r *http.Request) {
			gotHeaders = r.Header.Clone()
			_, _ = w.Write([]byte(`{"items": []}`))
		},
	})

	_, err := client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)

	_, err = client.GetBlueprints(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "upstream-token-1", gotHeaders.Get("AuthToken"))
	assert.Equal(t, "application/json", gotHeaders.Get("Content-Type"))
	assert.Equal(t, "no-cache", gotHeaders.Get("Cache-Control"))
}

func TestSetTokenResumesWithoutLogin(t *testing.T) {
	var gotToken string
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints": func(w http.ResponseWriter, r *http.Request) {
			gotToken = r.Header.Get("AuthToken")
			_, _ = w.Write([]byte(`{"items": []}`))
		},
	})

	client.SetToken("cached-token")
	_, err := client.GetBlueprints(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "cached-token", gotToken)
}

func TestUnauthorizedResponse(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors": "token expired"}`))
		},
	})
	client.SetToken("stale")

	_, err := client.GetBlueprints(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))

	var upstreamErr *UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.Status)
	assert.Contains(t, upstreamErr.Body, "token expired")
}

func TestUpstreamErrorNotUnauthorized(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	})
	client.SetToken("t")

	_, err := client.GetBlueprints(context.Background())
	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
}

func TestTransportError(t *testing.T) {
	srv, client := newTestServer(t, nil)
	srv.Close()

	_, err := client.Login(context.Background(), "admin", "secret")
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "login", transportErr.Op)
	assert.False(t, IsUnauthorized(err))
}

func TestListEnvelopeUnwrapped(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"items": [{"id": "bp-1", "label": "dc1"}]}`))
		},
	})
	client.SetToken("t")

	items, err := client.GetBlueprints(context.Background())
	require.NoError(t, err)

	var parsed []map[string]string
	require.NoError(t, json.Unmarshal(items, &parsed))
	require.Len(t, parsed, 1)
	assert.Equal(t, "bp-1", parsed[0]["id"])
}

func TestBlueprintPathEscaping(t *testing.T) {
	var gotPath string
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints/": func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			_, _ = w.Write([]byte(`{}`))
		},
	})
	client.SetToken("t")

	_, err := client.GetDiffStatus(context.Background(), "bp 1")
	require.NoError(t, err)
	assert.Equal(t, "/api/blueprints/bp%201/diff-status", gotPath)
}

func TestCreateRemoteGatewayDefaults(t *testing.T) {
	var gotBody map[string]interface{}
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints/bp-1/remote_gateways": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte(`{"id": "rgw-1"}`))
		},
	})
	client.SetToken("t")

	_, err := client.CreateRemoteGateway(context.Background(), "bp-1", RemoteGatewayInput{
		GwIP:         "192.0.2.1",
		GwASN:        65000,
		GwName:       "dci-gw",
		LocalGwNodes: []string{"node-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "all", gotBody["evpn_route_types"])
	assert.NotContains(t, gotBody, "password", "omitempty fields must stay off the wire")
	assert.NotContains(t, gotBody, "keepalive_timer")
}

func TestDeployPayload(t *testing.T) {
	var gotMethod string
	var gotBody map[string]interface{}
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"/api/blueprints/bp-1/deploy": func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			_, _ = w.Write([]byte(`{}`))
		},
	})
	client.SetToken("t")

	_, err := client.Deploy(context.Background(), "bp-1", "rollout", 7)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, float64(7), gotBody["version"])
	assert.Equal(t, "rollout", gotBody["description"])
}
