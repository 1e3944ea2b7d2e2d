package tool

import (
	"context"
	"testing"

	"github.com/flowforge/flowgraph/component"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	lastInput map[string]interface{}
}

func (f *fakeTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	f.lastInput = input
	return map[string]interface{}{"echo": input["value"]}, nil
}

func TestToolComponentDiscardsStateViewAndDelegatesToTool(t *testing.T) {
	fake := &fakeTool{}
	c := NewToolComponent(fake)

	out, err := c.Call(context.Background(), component.StateView{}, map[string]interface{}{"value": "x"})
	require.NoError(t, err)
	require.Equal(t, "x", out["echo"])
	require.Equal(t, "x", fake.lastInput["value"])
}
