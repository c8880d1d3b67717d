// Package cmd implements the command-line interface for apstra-mcp.
//
// This package provides the following commands:
//   - serve: Start the MCP server exposing Apstra fabric operations
//   - version: Display version information
//
// The serve command is the default command when no subcommand is specified.
package cmd
