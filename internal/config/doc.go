// Package config loads the Apstra server configuration file and resolves
// credentials for the active authentication mode.
//
// Credentials are resolved per field from up to three sources, in order:
// explicit arguments (remote-session login only), environment variables
// (per-user-env mode only), and the configuration file loaded at startup.
// The port is resolved after the sources: a port embedded in the host
// ("10.0.0.1:8443") wins over a separately supplied port, which wins over
// the default of 443.
package config
