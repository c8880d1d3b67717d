// Package logging provides slog attribute helpers used across the
// codebase, plus sanitizers that keep credentials and tokens out of
// log output.
package logging
