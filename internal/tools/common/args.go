package common

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"
)

// GetArguments returns the request arguments as a map. A request with no
// arguments yields an empty map rather than nil.
func GetArguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}
	return args
}

// GetSessionTokenFromArgs extracts the session_token argument, or "" when
// absent. The local modes never send one.
func GetSessionTokenFromArgs(args map[string]interface{}) string {
	token, _ := args["session_token"].(string)
	return token
}

// RequiredString extracts a required string argument.
func RequiredString(args map[string]interface{}, key string) (string, error) {
	value, ok := args[key].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return value, nil
}

// OptionalString extracts an optional string argument, returning def when
// absent or empty.
func OptionalString(args map[string]interface{}, key, def string) string {
	if value, ok := args[key].(string); ok && value != "" {
		return value
	}
	return def
}

// OptionalInt extracts an optional numeric argument. JSON decoding
// delivers numbers as float64 and some clients send them as strings, so
// coerce rather than type-assert.
func OptionalInt(args map[string]interface{}, key string, def int) (int, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return def, nil
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %v: must be a number", key, value)
	}
	return n, nil
}

// RequiredInt extracts a required numeric argument with the same coercion
// rules as OptionalInt.
func RequiredInt(args map[string]interface{}, key string) (int, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := cast.ToIntE(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %v: must be a number", key, value)
	}
	return n, nil
}

// StringSlice extracts a list-of-strings argument. Accepts a JSON array
// of strings or a single string for convenience.
func StringSlice(args map[string]interface{}, key string) ([]string, error) {
	value, ok := args[key]
	if !ok || value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		return []string{v}, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := cast.ToStringE(item)
			if err != nil {
				return nil, fmt.Errorf("invalid %s entry %v: must be a string", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid %s value %v: must be a list of strings", key, value)
	}
}

// JSONResult renders a value as an indented JSON tool result. Raw JSON
// from the upstream API is re-indented rather than double-encoded.
func JSONResult(value interface{}) (*mcp.CallToolResult, error) {
	if raw, ok := value.(json.RawMessage); ok {
		var pretty interface{}
		if err := json.Unmarshal(raw, &pretty); err == nil {
			value = pretty
		} else {
			return mcp.NewToolResultText(string(raw)), nil
		}
	}
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(encoded)), nil
}
