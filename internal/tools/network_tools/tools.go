package network_tools

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

// blueprintQuery is one read-only per-blueprint fabric query. The whole
// family shares the same shape: one required blueprint_id, one wrapper
// call, JSON out.
type blueprintQuery struct {
	name        string
	description string
	call        func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error)
}

func queries() []blueprintQuery {
	return []blueprintQuery{
		{
			name:        "get_racks",
			description: "List the racks in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetRacks(ctx, blueprintID)
			},
		},
		{
			name:        "get_routing_zones",
			description: "List the routing zones (security zones) in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetRoutingZones(ctx, blueprintID)
			},
		},
		{
			name:        "get_virtual_networks",
			description: "List the virtual networks in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetVirtualNetworks(ctx, blueprintID)
			},
		},
		{
			name:        "get_remote_gateways",
			description: "List the remote EVPN gateways in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetRemoteGateways(ctx, blueprintID)
			},
		},
		{
			name:        "get_system_info",
			description: "List the systems (devices) in a blueprint with their roles and status",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetSystemInfo(ctx, blueprintID)
			},
		},
		{
			name:        "get_anomalies",
			description: "List the active anomalies in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetAnomalies(ctx, blueprintID)
			},
		},
		{
			name:        "get_protocol_sessions",
			description: "List the protocol (BGP) sessions in a blueprint",
			call: func(ctx context.Context, client *apstra.Client, blueprintID string) (json.RawMessage, error) {
				return client.GetProtocolSessions(ctx, blueprintID)
			},
		},
	}
}

// RegisterNetworkTools registers fabric query and virtual network tools
// with the MCP server. Mutating tools are only registered when readOnly
// is false.
func RegisterNetworkTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	for _, q := range queries() {
		registerBlueprintQueryTool(s, sc, q)
	}

	if !readOnly {
		registerCreateVirtualNetworkTool(s, sc)
		registerCreateRemoteGatewayTool(s, sc)
	}

	return nil
}

func sessionTokenOption() mcp.ToolOption {
	return mcp.WithString("session_token",
		mcp.Description("Session token from the login tool. Required in session mode, ignored otherwise."),
	)
}

func registerBlueprintQueryTool(s *mcpserver.MCPServer, sc *server.ServerContext, q blueprintQuery) {
	tool := mcp.NewTool(q.name,
		mcp.WithDescription(q.description),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler(q.name, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var result json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), q.name, func(ctx context.Context, client *apstra.Client) error {
			var err error
			result, err = q.call(ctx, client, blueprintID)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", q.name, err)), nil
		}

		return common.JSONResult(result)
	}))
}

func registerCreateVirtualNetworkTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("create_virtual_network",
		mcp.WithDescription("Create a VXLAN virtual network in a routing zone"),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint"),
		),
		mcp.WithString("routing_zone_id",
			mcp.Required(),
			mcp.Description("The ID of the routing zone (security zone) to place the network in"),
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Label for the new virtual network"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("create_virtual_network", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		routingZoneID, err := common.RequiredString(args, "routing_zone_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		name, err := common.RequiredString(args, "name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var created json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "create_virtual_network", func(ctx context.Context, client *apstra.Client) error {
			var err error
			created, err = client.CreateVirtualNetwork(ctx, blueprintID, routingZoneID, name)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create virtual network: %v", err)), nil
		}

		return common.JSONResult(created)
	}))
}

func registerCreateRemoteGatewayTool(s *mcpserver.MCPServer, sc *server.ServerContext) {
	tool := mcp.NewTool("create_remote_gateway",
		mcp.WithDescription("Create a remote EVPN gateway in a blueprint for DCI peering"),
		sessionTokenOption(),
		mcp.WithString("blueprint_id",
			mcp.Required(),
			mcp.Description("The ID of the blueprint"),
		),
		mcp.WithString("gw_ip",
			mcp.Required(),
			mcp.Description("IP address of the remote gateway"),
		),
		mcp.WithString("gw_asn",
			mcp.Required(),
			mcp.Description("BGP ASN of the remote gateway"),
		),
		mcp.WithString("gw_name",
			mcp.Required(),
			mcp.Description("Name for the remote gateway"),
		),
		mcp.WithString("local_gw_nodes",
			mcp.Required(),
			mcp.Description("System node IDs of the local gateway devices (list of strings)"),
		),
		mcp.WithString("evpn_route_types",
			mcp.Description("EVPN route types to exchange (default: \"all\")"),
		),
		mcp.WithString("password",
			mcp.Description("BGP session password"),
		),
		mcp.WithString("keepalive_timer",
			mcp.Description("BGP keepalive timer in seconds (default: 10)"),
		),
		mcp.WithString("evpn_interconnect_group_id",
			mcp.Description("EVPN interconnect group ID to join"),
		),
		mcp.WithString("holdtime_timer",
			mcp.Description("BGP holdtime timer in seconds (default: 30)"),
		),
		mcp.WithString("ttl",
			mcp.Description("BGP session TTL (default: 30)"),
		),
	)

	s.AddTool(tool, common.InstrumentedToolHandler("create_remote_gateway", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := common.GetArguments(request)
		blueprintID, err := common.RequiredString(args, "blueprint_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		input, err := remoteGatewayInputFromArgs(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var created json.RawMessage
		err = sc.Dispatch(ctx, common.GetSessionTokenFromArgs(args), "create_remote_gateway", func(ctx context.Context, client *apstra.Client) error {
			var err error
			created, err = client.CreateRemoteGateway(ctx, blueprintID, input)
			return err
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to create remote gateway: %v", err)), nil
		}

		return common.JSONResult(created)
	}))
}

func remoteGatewayInputFromArgs(args map[string]interface{}) (apstra.RemoteGatewayInput, error) {
	var input apstra.RemoteGatewayInput
	var err error

	if input.GwIP, err = common.RequiredString(args, "gw_ip"); err != nil {
		return input, err
	}
	if input.GwASN, err = common.RequiredInt(args, "gw_asn"); err != nil {
		return input, err
	}
	if input.GwName, err = common.RequiredString(args, "gw_name"); err != nil {
		return input, err
	}
	if input.LocalGwNodes, err = common.StringSlice(args, "local_gw_nodes"); err != nil {
		return input, err
	}
	if len(input.LocalGwNodes) == 0 {
		return input, fmt.Errorf("local_gw_nodes is required")
	}

	input.EvpnRouteTypes = common.OptionalString(args, "evpn_route_types", "all")
	input.Password = common.OptionalString(args, "password", "")
	input.EvpnInterconnectGroupID = common.OptionalString(args, "evpn_interconnect_group_id", "")

	if input.KeepaliveTimer, err = common.OptionalInt(args, "keepalive_timer", 10); err != nil {
		return input, err
	}
	if input.HoldtimeTimer, err = common.OptionalInt(args, "holdtime_timer", 30); err != nil {
		return input, err
	}
	if input.TTL, err = common.OptionalInt(args, "ttl", 30); err != nil {
		return input, err
	}

	return input, nil
}
