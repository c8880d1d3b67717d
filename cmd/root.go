package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the apstra-mcp application
var rootCmd = &cobra.Command{
	Use:   "apstra-mcp",
	Short: "MCP server exposing Juniper Apstra fabric operations",
	Long: `apstra-mcp is a Model Context Protocol (MCP) server that exposes
Juniper Apstra datacenter fabric operations as tools for AI assistants:
blueprint lifecycle, virtual networks, remote EVPN gateways, and fabric
health queries.

It can run over stdio for local assistants or over streamable HTTP for
shared deployments, where each caller authenticates through the login
tool and receives a session token.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "apstra-mcp version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
