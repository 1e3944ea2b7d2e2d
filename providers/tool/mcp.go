package tool

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPTool dispatches a tool node's input to a single named tool exposed by
// a Model Context Protocol server reached over SSE. Inputs: "tool" (the
// MCP tool name, required if toolName is empty at construction), "args"
// (the tool's JSON-schema-shaped arguments map). Output: "content" (the
// concatenated text content the server returned) plus "raw" (the full
// decoded result content list).
type MCPTool struct {
	serverURL   string
	toolName    string
	permissions []string
}

// NewMCPTool binds to an MCP server's SSE endpoint. toolName may be empty
// to let each invocation's "tool" input select the server-side tool.
func NewMCPTool(serverURL, toolName string, permissions []string) *MCPTool {
	return &MCPTool{serverURL: serverURL, toolName: toolName, permissions: permissions}
}

// Permissions satisfies component.PermissionSource.
func (t *MCPTool) Permissions() []string { return t.permissions }

func (t *MCPTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	name := t.toolName
	if name == "" {
		name, _ = input["tool"].(string)
	}
	if name == "" {
		return nil, fmt.Errorf("mcp: \"tool\" is required when no default tool is configured")
	}

	args, _ := input["args"].(map[string]interface{})

	c, err := client.NewSSEMCPClient(t.serverURL)
	if err != nil {
		return nil, fmt.Errorf("mcp: connecting to %q: %w", t.serverURL, err)
	}
	defer c.Close()

	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: starting client: %w", err)
	}
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		return nil, fmt.Errorf("mcp: initializing session: %w", err)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp: calling tool %q: %w", name, err)
	}

	var text string
	raw := make([]interface{}, 0, len(result.Content))
	for _, item := range result.Content {
		if tc, ok := item.(mcp.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
		raw = append(raw, item)
	}

	return map[string]interface{}{
		"content":   text,
		"raw":       raw,
		"is_error":  result.IsError,
		"tool_name": name,
	}, nil
}
