package apstra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// itemsEnvelope is the {"items": [...]} wrapper most list endpoints use.
type itemsEnvelope struct {
	Items json.RawMessage `json:"items"`
}

// GetBlueprints lists all blueprints.
func (c *Client) GetBlueprints(ctx context.Context) (json.RawMessage, error) {
	var out itemsEnvelope
	if err := c.do(ctx, "get_blueprints", http.MethodGet, "/api/blueprints", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// GetTemplates lists the design templates available for blueprint creation.
func (c *Client) GetTemplates(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_templates", http.MethodGet, "/api/design/templates", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDiffStatus returns the staging/deployed diff status for a blueprint.
func (c *Client) GetDiffStatus(ctx context.Context, blueprintID string) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.do(ctx, "get_diff_status", http.MethodGet, blueprintPath(blueprintID, "diff-status"), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDatacenterBlueprint creates a two-stage L3 Clos blueprint from a
// design template.
func (c *Client) CreateDatacenterBlueprint(ctx context.Context, name, templateID string) (json.RawMessage, error) {
	body := map[string]string{
		"design":      "two_stage_l3clos",
		"init_type":   "template_reference",
		"template_id": templateID,
		"label":       name,
	}
	var out json.RawMessage
	if err := c.do(ctx, "create_datacenter_blueprint", http.MethodPost, "/api/blueprints", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateFreeformBlueprint creates an empty freeform blueprint.
func (c *Client) CreateFreeformBlueprint(ctx context.Context, name string) (json.RawMessage, error) {
	body := map[string]string{
		"design":    "freeform",
		"init_type": "none",
		"label":     name,
	}
	var out json.RawMessage
	if err := c.do(ctx, "create_freeform_blueprint", http.MethodPost, "/api/blueprints", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteBlueprint deletes a blueprint by ID.
func (c *Client) DeleteBlueprint(ctx context.Context, blueprintID string) error {
	return c.do(ctx, "delete_blueprint", http.MethodDelete, "/api/blueprints/"+url.PathEscape(blueprintID), nil, nil)
}

// Deploy commits a staging version of a blueprint to the fabric.
func (c *Client) Deploy(ctx context.Context, blueprintID, description string, stagingVersion int) (json.RawMessage, error) {
	body := map[string]interface{}{
		"version":     stagingVersion,
		"description": description,
	}
	var out json.RawMessage
	if err := c.do(ctx, "deploy", http.MethodPut, blueprintPath(blueprintID, "deploy"), body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func blueprintPath(blueprintID string, parts ...string) string {
	path := "/api/blueprints/" + url.PathEscape(blueprintID)
	for _, p := range parts {
		path = fmt.Sprintf("%s/%s", path, p)
	}
	return path
}
