// Package tool adapts concrete tool backends (HTTP, MCP servers, web-page
// markdown extraction) to the registry's tool/component factory contract.
package tool

import (
	"context"

	"github.com/flowforge/flowgraph/component"
)

// Tool is the narrow interface every backend in this package implements:
// take structured input, return a structured result. It is the permission-
// source-aware building block component factories wrap as a
// component.Callable.
type Tool interface {
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}

// toolComponent adapts a Tool to component.Callable by discarding the
// StateView parameter tools have no use for.
type toolComponent struct {
	tool Tool
}

// NewToolComponent wraps a Tool as a component.Callable.
func NewToolComponent(t Tool) component.Callable {
	return &toolComponent{tool: t}
}

func (c *toolComponent) Call(ctx context.Context, _ component.StateView, inputs map[string]interface{}) (map[string]interface{}, error) {
	return c.tool.Call(ctx, inputs)
}
