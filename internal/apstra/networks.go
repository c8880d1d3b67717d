package apstra

import (
	"context"
	"encoding/json"
	"net/http"
)

// GetRacks lists the racks in a blueprint.
func (c *Client) GetRacks(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out itemsEnvelope
	if err := c.do(ctx, "get_racks", http.MethodGet, blueprintPath(blueprintID, "racks"), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetRoutingZones lists the routing zones (security zones) in a blueprint.
func (c *Client) GetRoutingZones(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_routing_zones", http.MethodGet, blueprintPath(blueprintID, "security-zones"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetVirtualNetworks lists the virtual networks in a blueprint.
func (c *Client) GetVirtualNetworks(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_virtual_networks", http.MethodGet, blueprintPath(blueprintID, "virtual-networks"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetRemoteGateways lists the remote EVPN gateways in a blueprint.
func (c *Client) GetRemoteGateways(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_remote_gateways", http.MethodGet, blueprintPath(blueprintID, "remote_gateways"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSystemInfo lists the systems (devices) in a blueprint.
func (c *Client) GetSystemInfo(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_system_info", http.MethodGet, blueprintPath(blueprintID, "systems"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAnomalies lists the active anomalies in a blueprint.
func (c *Client) GetAnomalies(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_anomalies", http.MethodGet, blueprintPath(blueprintID, "anomalies"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProtocolSessions lists the protocol (BGP) sessions in a blueprint.
func (c *Client) GetProtocolSessions(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_protocol_sessions", http.MethodGet, blueprintPath(blueprintID, "protocol-sessions"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateVirtualNetwork creates a VXLAN virtual network in a routing zone.
func (c *Client) CreateVirtualNetwork(ctx context.Context, blueprintID, securityZoneID, label string) (json.RawMessage, error) {
	body := map[string]string{
		"label":            label,
		"vn_type":          "vxlan",
		"security_zone_id": securityZoneID,
	}
	var out json.RawMessage
	if err := c.do(ctx, "create_virtual_network", http.MethodPost, blueprintPath(blueprintID, "virtual-networks"), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoteGatewayInput describes a remote EVPN gateway to create.
type RemoteGatewayInput struct {
	GwIP                    string   `json:"gw_ip"`
	GwASN                   int      `json:"gw_asn"`
	GwName                  string   `json:"gw_name"`
	LocalGwNodes            []string `json:"local_gw_nodes"`
	EvpnRouteTypes          string   `json:"evpn_route_types,omitempty"`
	Password                string   `json:"password,omitempty"`
	KeepaliveTimer          int      `json:"keepalive_timer,omitempty"`
	EvpnInterconnectGroupID string   `json:"evpn_interconnect_group_id,omitempty"`
	HoldtimeTimer           int      `json:"holdtime_timer,omitempty"`
	TTL                     int      `json:"ttl,omitempty"`
}

// CreateRemoteGateway creates a remote EVPN gateway in a blueprint.
func (c *Client) CreateRemoteGateway(ctx context.Context, blueprintID string, input RemoteGatewayInput) (json.RawMessage, error) {
	if input.EvpnRouteTypes == "" {
		input.EvpnRouteTypes = "all"
	}
	var out json.RawMessage
	if err := c.do(ctx, "create_remote_gateway", http.MethodPost, blueprintPath(blueprintID, "remote_gateways"), input, &out); err != nil {
		return nil, err
	}
	return out, nil
}
