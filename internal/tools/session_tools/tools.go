package session_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fabricops/apstra-mcp/internal/config"
	"github.com/fabricops/apstra-mcp/internal/server"
	"github.com/fabricops/apstra-mcp/internal/tools/common"
)

// RegisterSessionTools registers the session lifecycle tools with the MCP
// server. The tools exist in every mode so clients get a clear answer
// rather than an unknown-tool error; login and logout only perform work
// in session mode, while session_info and health report in every mode.
func RegisterSessionTools(s *mcpserver.MCPServer, sc *server.ServerContext, version string) error {
	registerLoginTool(s, sc)
	registerLogoutTool(s, sc)
	registerSessionInfoTool(s, sc)
	registerHealthTool(s, sc, version)
	return nil
}

func registerLoginTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	loginTool := mcp.NewTool("login",
		mcp.WithDescription("Authenticate against the Apstra server and obtain a session token. "+
			"Credentials may be supplied explicitly; fields omitted here fall back to the server's config file. "+
			"Only available in session mode; the local modes authenticate automatically."),
		mcp.WithString("server",
			mcp.Description("Apstra server hostname or IP, optionally with an embedded port (host:port)"),
		),
		mcp.WithString("port",
			mcp.Description("Apstra API port (default: 443, or the port embedded in the server field)"),
		),
		mcp.WithString("username",
			mcp.Description("Apstra username"),
		),
		mcp.WithString("password",
			mcp.Description("Apstra password"),
		),
	)

	s.AddTool(loginTool, common.InstrumentedToolHandler("login", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)

		port, err := common.OptionalInt(args, "port", 0)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		explicit := &config.Credentials{
			Host:     common.OptionalString(args, "server", ""),
			Port:     port,
			Username: common.OptionalString(args, "username", ""),
			Password: common.OptionalString(args, "password", ""),
		}

		token, ttl, err := sc.Login(ctx, explicit)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Login failed: %v", err)), nil
		}

		return common.JSONResult(map[string]interface{}{
			"session_token":      token,
			"expires_in_seconds": int(ttl.Seconds()),
			"note":               "Pass session_token with every subsequent tool call. The session expires after the given idle period.",
		})
	}))
}

func registerLogoutTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	logoutTool := mcp.NewTool("logout",
		mcp.WithDescription("Invalidate a session token. Logging out an unknown or already "+
			"expired token succeeds without error."),
		mcp.WithString("session_token",
			mcp.Required(),
			mcp.Description("The session token to invalidate"),
		),
	)

	s.AddTool(logoutTool, common.InstrumentedToolHandler("logout", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		token := common.GetSessionTokenFromArgs(args)

		removed, err := sc.Logout(ctx, token)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		message := "Session invalidated."
		if !removed {
			message = "No such session; nothing to invalidate."
		}
		return mcp.NewToolResultText(message), nil
	}))
}

func registerSessionInfoTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	sessionInfoTool := mcp.NewTool("session_info",
		mcp.WithDescription("Report authentication status: the server's auth mode, whether the "+
			"caller is authenticated, and the session owner when one exists. Works in every mode "+
			"and does not refresh a session's idle timer."),
		mcp.WithString("session_token",
			mcp.Description("Session token to inspect (session mode). Optional; without one the report covers the server's own state."),
		),
	)

	s.AddTool(sessionInfoTool, common.InstrumentedToolHandler("session_info", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		status := sc.SessionStatus(common.GetSessionTokenFromArgs(args))

		report := map[string]interface{}{
			"mode":          string(status.Mode),
			"authenticated": status.Authenticated,
		}
		if status.Owner != "" {
			report["owner"] = status.Owner
		}
		if status.Host != "" {
			report["server"] = status.Host
		}
		if !status.CreatedAt.IsZero() {
			report["created_at"] = status.CreatedAt
			report["expires_in_seconds"] = int(status.ExpiresIn.Seconds())
		}
		if status.SessionError != "" {
			report["session_error"] = status.SessionError
		}
		return common.JSONResult(report)
	}))
}

func registerHealthTool(s *mcpserver.MCPServer, sc *server.ServerContext, version string) {
	healthTool := mcp.NewTool("health",
		mcp.WithDescription("Report server health: version, auth mode, and active session count. "+
			"Does not contact the Apstra server."),
	)

	s.AddTool(healthTool, common.InstrumentedToolHandler("health", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return common.JSONResult(map[string]interface{}{
			"status":          "ok",
			"version":         version,
			"mode":            string(sc.Mode()),
			"active_sessions": sc.ActiveSessionCount(),
		})
	}))
}
