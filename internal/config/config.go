package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DefaultPort is the Apstra API port used when no port is configured.
const DefaultPort = 443

// DefaultConfigFile is the configuration file consulted when -f is not given.
const DefaultConfigFile = "apstra_config.json"

// Credentials is the tuple needed to authenticate against the Apstra server.
// It only ever lives in process memory.
type Credentials struct {
	Host     string
	Port     int
	Username string
	Password string
}

// BaseURL returns the HTTPS base URL for the Apstra API.
func (c Credentials) BaseURL() string {
	return fmt.Sprintf("https://%s:%d", c.Host, c.Port)
}

// File is the parsed configuration file. It is read once at startup and
// treated as read-only afterwards.
type File struct {
	Host     string
	Port     int
	Username string
	Password string

	// InsecureSkipTLSVerify disables verification of the Apstra server
	// certificate. Defaults to true: Apstra appliances commonly run with
	// self-signed certificates and the upstream tooling has always
	// connected with verification off. Set to false to require a valid
	// certificate chain.
	InsecureSkipTLSVerify bool

	// SessionTTLSeconds is the idle lifetime of remote sessions.
	SessionTTLSeconds int

	// RequestTimeoutSeconds bounds every upstream API call.
	RequestTimeoutSeconds int
}

// Field name aliases accepted in the configuration file. Older deployments
// used the apstra_ prefixed names, newer ones the bare names.
var (
	hostKeys     = []string{"apstra_server", "server", "host"}
	portKeys     = []string{"apstra_port", "port"}
	usernameKeys = []string{"apstra_username", "username"}
	passwordKeys = []string{"apstra_password", "password"}
)

// Load reads and parses a configuration file. JSON and YAML are both
// accepted; the format is chosen by file extension, defaulting to JSON.
// A missing file is an error; callers that tolerate absent configuration
// should check os.IsNotExist.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := map[string]interface{}{}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	return fromMap(path, raw)
}

func fromMap(path string, raw map[string]interface{}) (*File, error) {
	f := &File{
		InsecureSkipTLSVerify: true,
		SessionTTLSeconds:     3600,
		RequestTimeoutSeconds: 30,
	}

	f.Host = firstString(raw, hostKeys)
	f.Username = firstString(raw, usernameKeys)
	f.Password = firstString(raw, passwordKeys)

	// Ports have historically appeared both as numbers and as strings
	// ("443"), so coerce rather than type-assert.
	for _, key := range portKeys {
		if v, ok := raw[key]; ok {
			port, err := cast.ToIntE(v)
			if err != nil {
				return nil, fmt.Errorf("invalid port %v in config file %s: %w", v, path, err)
			}
			f.Port = port
			break
		}
	}

	if v, ok := raw["insecure_skip_tls_verify"]; ok {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid insecure_skip_tls_verify value %v in config file %s: %w", v, path, err)
		}
		f.InsecureSkipTLSVerify = b
	}
	if v, ok := raw["session_ttl_seconds"]; ok {
		ttl, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid session_ttl_seconds value %v in config file %s: %w", v, path, err)
		}
		f.SessionTTLSeconds = ttl
	}
	if v, ok := raw["request_timeout_seconds"]; ok {
		timeout, err := cast.ToIntE(v)
		if err != nil {
			return nil, fmt.Errorf("invalid request_timeout_seconds value %v in config file %s: %w", v, path, err)
		}
		f.RequestTimeoutSeconds = timeout
	}

	return f, nil
}

func firstString(raw map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s := cast.ToString(v); s != "" {
				return s
			}
		}
	}
	return ""
}
