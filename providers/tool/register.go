package tool

import (
	"fmt"
	"time"

	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/registry"
)

// Register binds the http_request/mcp/web_fetch tool factories and a shared
// "tool" component factory (wrapping any of them as a component.Callable)
// into reg. A tool's "permissions" config entry becomes its declared
// component.PermissionSource list.
func Register(reg *registry.Registry) {
	reg.RegisterToolFactory("http_request", func(desc ir.Tool, _ map[string]interface{}) (interface{}, error) {
		timeout := durationOf(desc.Config["timeout_seconds"])
		return NewHTTPTool(timeout, permissionsOf(desc.Config)), nil
	})

	reg.RegisterToolFactory("mcp", func(desc ir.Tool, _ map[string]interface{}) (interface{}, error) {
		serverURL, _ := desc.Config["server_url"].(string)
		if serverURL == "" {
			return nil, fmt.Errorf("mcp: \"server_url\" is required")
		}
		toolName, _ := desc.Config["tool_name"].(string)
		return NewMCPTool(serverURL, toolName, permissionsOf(desc.Config)), nil
	})

	reg.RegisterToolFactory("web_fetch", func(desc ir.Tool, _ map[string]interface{}) (interface{}, error) {
		return NewWebFetchTool(permissionsOf(desc.Config)), nil
	})

	reg.RegisterComponentFactory("tool", func(_ ir.Component, _ map[string]interface{}, tool interface{}) (interface{}, error) {
		t, ok := tool.(Tool)
		if !ok {
			return nil, fmt.Errorf("tool: component has no compatible bound tool")
		}
		return NewToolComponent(t), nil
	})
}

func permissionsOf(cfg map[string]interface{}) []string {
	raw, ok := cfg["permissions"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func durationOf(v interface{}) time.Duration {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n) * time.Second
	default:
		return 0
	}
}
