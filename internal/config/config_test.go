package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    File
	}{
		{
			name:    "prefixed field names",
			content: `{"apstra_server": "10.0.0.1", "apstra_port": 443, "apstra_username": "admin", "apstra_password": "secret"}`,
			want: File{
				Host:     "10.0.0.1",
				Port:     443,
				Username: "admin",
				Password: "secret",
			},
		},
		{
			name:    "bare field names",
			content: `{"server": "apstra.example.com", "port": 8443, "username": "ops", "password": "pw"}`,
			want: File{
				Host:     "apstra.example.com",
				Port:     8443,
				Username: "ops",
				Password: "pw",
			},
		},
		{
			name:    "prefixed names win over bare names",
			content: `{"apstra_server": "primary", "host": "secondary", "username": "u", "password": "p"}`,
			want: File{
				Host:     "primary",
				Username: "u",
				Password: "p",
			},
		},
		{
			name:    "port as string is coerced",
			content: `{"server": "h", "port": "443", "username": "u", "password": "p"}`,
			want: File{
				Host:     "h",
				Port:     443,
				Username: "u",
				Password: "p",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, "config.json", tt.content)
			got, err := Load(path)
			require.NoError(t, err)

			assert.Equal(t, tt.want.Host, got.Host)
			assert.Equal(t, tt.want.Port, got.Port)
			assert.Equal(t, tt.want.Username, got.Username)
			assert.Equal(t, tt.want.Password, got.Password)
		})
	}
}

func TestLoadYAML(t *testing.T) {
	content := "apstra_server: fabric.example.com\napstra_port: 8443\napstra_username: admin\napstra_password: secret\ninsecure_skip_tls_verify: false\n"
	path := writeTempConfig(t, "config.yaml", content)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fabric.example.com", got.Host)
	assert.Equal(t, 8443, got.Port)
	assert.Equal(t, "admin", got.Username)
	assert.Equal(t, "secret", got.Password)
	assert.False(t, got.InsecureSkipTLSVerify)
}

func TestLoadDefaults(t *testing.T) {
	path := writeTempConfig(t, "config.json", `{"server": "h", "username": "u", "password": "p"}`)

	got, err := Load(path)
	require.NoError(t, err)

	assert.True(t, got.InsecureSkipTLSVerify, "TLS verification skip should default to on")
	assert.Equal(t, 3600, got.SessionTTLSeconds)
	assert.Equal(t, 30, got.RequestTimeoutSeconds)
	assert.Zero(t, got.Port, "port stays unset until credential resolution")
}

func TestLoadTunables(t *testing.T) {
	path := writeTempConfig(t, "config.json",
		`{"server": "h", "username": "u", "password": "p", "session_ttl_seconds": 600, "request_timeout_seconds": 5}`)

	got, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 600, got.SessionTTLSeconds)
	assert.Equal(t, 5, got.RequestTimeoutSeconds)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("malformed JSON", func(t *testing.T) {
		path := writeTempConfig(t, "config.json", `{"server": `)
		_, err := Load(path)
		require.Error(t, err)
	})

	t.Run("unparseable port", func(t *testing.T) {
		path := writeTempConfig(t, "config.json", `{"server": "h", "port": "not-a-port", "username": "u", "password": "p"}`)
		_, err := Load(path)
		require.Error(t, err)
	})
}

func TestCredentialsBaseURL(t *testing.T) {
	creds := Credentials{Host: "10.0.0.1", Port: 8443}
	assert.Equal(t, "https://10.0.0.1:8443", creds.BaseURL())
}
