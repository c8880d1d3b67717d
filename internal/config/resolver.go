package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

// Mode selects how credentials are sourced and whether sessions are used.
// It is chosen once at process start and never changes afterwards.
type Mode string

const (
	// ModeLocalShared uses one credential tuple from the configuration
	// file for every call. Sessions are not used.
	ModeLocalShared Mode = "shared"

	// ModeLocalPerUserEnv resolves credentials from APSTRA_* environment
	// variables, falling back to the configuration file per field.
	ModeLocalPerUserEnv Mode = "env"

	// ModeRemoteSession requires each caller to login and present a
	// session token on every subsequent call.
	ModeRemoteSession Mode = "session"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLocalShared, ModeLocalPerUserEnv, ModeRemoteSession:
		return true
	}
	return false
}

// Environment variables consulted in ModeLocalPerUserEnv.
const (
	EnvHost     = "APSTRA_SERVER"
	EnvPort     = "APSTRA_PORT"
	EnvUsername = "APSTRA_USERNAME"
	EnvPassword = "APSTRA_PASSWORD"
)

// EnvSource looks up an environment variable. Abstracted so precedence
// rules can be tested without mutating the process environment.
type EnvSource func(key string) string

// OSEnv reads from the real process environment.
func OSEnv(key string) string {
	return os.Getenv(key)
}

// ConfigError reports credential fields that remained unset after all
// sources were consulted. It never carries credential values.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("credential resolution failed: missing %s (checked explicit arguments, environment, and config file)",
		strings.Join(e.Missing, ", "))
}

// Resolve produces one concrete credential tuple for the given mode.
//
// Sources are consulted per field, first populated wins:
//  1. explicit (ModeRemoteSession only, supplied with the login call)
//  2. environment (ModeLocalPerUserEnv only)
//  3. the configuration file
//
// Port precedence is applied afterwards: a port embedded in the host wins
// over an explicitly supplied port, which wins over DefaultPort.
func Resolve(mode Mode, explicit *Credentials, env EnvSource, file *File) (Credentials, error) {
	if env == nil {
		env = func(string) string { return "" }
	}
	if file == nil {
		file = &File{}
	}

	var exp Credentials
	if mode == ModeRemoteSession && explicit != nil {
		exp = *explicit
	}

	var envHost, envUsername, envPassword string
	envPort := 0
	if mode == ModeLocalPerUserEnv {
		envHost = env(EnvHost)
		envUsername = env(EnvUsername)
		envPassword = env(EnvPassword)
		if raw := env(EnvPort); raw != "" {
			port, err := strconv.Atoi(raw)
			if err != nil {
				return Credentials{}, fmt.Errorf("invalid %s value %q: %w", EnvPort, raw, err)
			}
			envPort = port
		}
	}

	resolved := Credentials{
		Host:     firstNonEmpty(exp.Host, envHost, file.Host),
		Username: firstNonEmpty(exp.Username, envUsername, file.Username),
		Password: firstNonEmpty(exp.Password, envPassword, file.Password),
	}
	suppliedPort := firstNonZero(exp.Port, envPort, file.Port)

	var missing []string
	if resolved.Host == "" {
		missing = append(missing, "host")
	}
	if resolved.Username == "" {
		missing = append(missing, "username")
	}
	if resolved.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return Credentials{}, &ConfigError{Missing: missing}
	}

	host, port, err := splitHostPort(resolved.Host)
	if err != nil {
		return Credentials{}, err
	}
	resolved.Host = host
	switch {
	case port != 0:
		resolved.Port = port
	case suppliedPort != 0:
		resolved.Port = suppliedPort
	default:
		resolved.Port = DefaultPort
	}

	return resolved, nil
}

// splitHostPort extracts an embedded port from host if present. Hosts
// without a port (including bare IPv6 literals) are returned unchanged
// with port 0.
func splitHostPort(host string) (string, int, error) {
	if !strings.Contains(host, ":") {
		return host, 0, nil
	}
	h, p, err := net.SplitHostPort(host)
	if err != nil {
		// More than one colon and no brackets: treat as an IPv6
		// literal without a port.
		if strings.Count(host, ":") > 1 && !strings.HasPrefix(host, "[") {
			return host, 0, nil
		}
		return "", 0, fmt.Errorf("invalid host %q: %w", host, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in host %q: %w", host, err)
	}
	return h, port, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
