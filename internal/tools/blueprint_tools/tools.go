package blueprint_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/fabricops/apstra-mcp/internal/apstra"
	"github.com/fabricops/apstra-mcp/internal/server"
	"github.com/fabricops/apstra-mcp/internal/tools/common"
)

// RegisterBlueprintTools registers blueprint lifecycle tools with the MCP
// server. Mutating tools (create, delete, deploy) are only registered
// when readOnly is false.
func RegisterBlueprintTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	registerGetBlueprintsTool(s, sc)
	registerGetTemplatesTool(s, sc)
	registerGetDiffStatusTool(s, sc)

	if !readOnly {
		registerCreateDatacenterBlueprintTool(s, sc)
		registerCreateFreeformBlueprintTool(s, sc)
		registerDeleteBlueprintTool(s, sc)
		registerDeployTool(s, sc)
	}

	return nil
}

// sessionTokenOption is the session_token parameter every fabric tool
// carries. Ignored in the local modes.
func sessionTokenOption() mcp.ToolOption {
	return mcp.WithString("session_token",
		mcp.Description("Session token from the login tool. Required in session mode, ignored otherwise."),
	)
}

func registerGetBlueprintsTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("get_blueprints",
		mcp.WithDescription("List all blueprints on the Apstra server with their IDs and labels"),
		sessionTokenOption(),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("get_blueprints", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)

		var blueprints json.RawMessage
		err := sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "get_blueprints", func(ctx context.Context, client *apstra.Client) error {
			var err error
			blueprints, err = client.GetBlueprints(ctx)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list blueprints: %v", err)), nil
		}

		return common.JSONResult(blueprints)
	}))
}

func registerGetTemplatesTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("get_templates",
		mcp.WithDescription("List the design templates available for datacenter blueprint creation"),
		sessionTokenOption(),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("get_templates", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)

		var templates json.RawMessage
		err := sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "get_templates", func(ctx context.Context, client *apstra.Client) error {
			var err error
			templates, err = client.GetTemplates(ctx)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list templates: %v", err)), nil
		}

		return common.JSONResult(templates)
	}))
}

func registerGetDiffStatusTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("get_diff_status",
		mcp.WithDescription("Show the staging/deployed diff status of a blueprint, including the current staging version"),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("get_diff_status", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var status json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "get_diff_status", func(ctx context.Context, client *apstra.Client) error {
			var err error
			status, err = client.GetDiffStatus(ctx, blueprintID)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get diff status: %v", err)), nil
		}

		return common.JSONResult(status)
	}))
}

func registerCreateDatacenterBlueprintTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("create_datacenter_blueprint",
		mcp.WithDescription("Create a datacenter (two-stage L3 Clos) blueprint from a design template"),
		sessionTokenOption(),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Label for the new blueprint"),
		),
		mcp.WithString("template_id",
			mcp.Required(),
			mcp.Description("ID of the design template to instantiate (see get_templates)"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("create_datacenter_blueprint", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		name, err := common.RequiredString(args, "name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		templateID, err := common.RequiredString(args, "template_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var created json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "create_datacenter_blueprint", func(ctx context.Context, client *apstra.Client) error {
			var err error
			created, err = client.CreateDatacenterBlueprint(ctx, name, templateID)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create blueprint: %v", err)), nil
		}

		return common.JSONResult(created)
	}))
}

func registerCreateFreeformBlueprintTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("create_freeform_blueprint",
		mcp.WithDescription("Create an empty freeform blueprint"),
		sessionTokenOption(),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Label for the new blueprint"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("create_freeform_blueprint", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		name, err := common.RequiredString(args, "name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var created json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "create_freeform_blueprint", func(ctx context.Context, client *apstra.Client) error {
			var err error
			created, err = client.CreateFreeformBlueprint(ctx, name)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create blueprint: %v", err)), nil
		}

		return common.JSONResult(created)
	}))
}

func registerDeleteBlueprintTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("delete_blueprint",
		mcp.WithDescription("Delete a blueprint. This removes the blueprint and its staged changes permanently."),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint to delete"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("delete_blueprint", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "delete_blueprint", func(ctx context.Context, client *apstra.Client) error {
			return client.DeleteBlueprint(ctx, blueprintID)
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to delete blueprint: %v", err)), nil
		}

		return mcp.NewToolResultText(fmt.Sprintf("Blueprint %s deleted.", blueprintID)), nil
	}))
}

func registerDeployTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("deploy",
		mcp.WithDescription("Commit a staging version of a blueprint to the fabric. "+
			"Use get_diff_status to find the current staging version."),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint to deploy"),
		),
		mcp.WithString("staging_version",
			mcp.Required(),
			mcp.Description("The staging version number to commit"),
		),
		mcp.WithString("description",
			mcp.Description("Commit description recorded with the deployment"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("deploy", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		stagingVersion, err := common.RequiredInt(args, "staging_version")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		description := common.OptionalString(args, "description", "Deployed via MCP")

		var result json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "deploy", func(ctx context.Context, client *apstra.Client) error {
			var err error
			result, err = client.Deploy(ctx, blueprintID, description, stagingVersion)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to deploy blueprint: %v", err)), nil
		}

		return common.JSONResult(result)
	}))
}
