package graphdef

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/registry"
)

type stubCallable struct{}

func (stubCallable) Call(_ context.Context, _ component.StateView, inputs map[string]interface{}) (map[string]interface{}, error) {
	return inputs, nil
}

// resolvedRegistry builds and resolves a registry over doc using a single
// catch-all factory for every declared provider/tool/component type.
func resolvedRegistry(t *testing.T, doc *ir.IR) *registry.Registry {
	t.Helper()
	reg := registry.New(doc)
	for _, p := range doc.Providers {
		reg.RegisterProviderFactory(p.Type, func(desc ir.Provider) (map[string]interface{}, error) {
			return map[string]interface{}{"id": desc.ID}, nil
		})
	}
	for _, tl := range doc.Tools {
		reg.RegisterToolFactory(tl.Type, func(ir.Tool, map[string]interface{}) (interface{}, error) {
			return stubCallable{}, nil
		})
	}
	for _, c := range doc.Components {
		reg.RegisterComponentFactory(c.Type, func(ir.Component, map[string]interface{}, interface{}) (interface{}, error) {
			return stubCallable{}, nil
		})
	}
	require.NoError(t, reg.Resolve())
	return reg
}

func baseDoc() *ir.IR {
	return &ir.IR{
		Providers: map[string]ir.Provider{
			"p1": {ID: "p1", Type: "fake"},
		},
		Components: map[string]ir.Component{
			"c1": {ID: "c1", Type: "llm", ProviderID: "p1"},
		},
		Graph: ir.GraphIR{
			EntryID: "n1",
			Order:   []string{"n1"},
			Nodes: map[string]*ir.Node{
				"n1": {ID: "n1", ComponentID: "c1", Pointer: "$/graph/nodes/0"},
			},
		},
		Reachable: map[string]bool{"n1": true},
	}
}

func TestBuildInfersKindFromComponentType(t *testing.T) {
	doc := baseDoc()
	reg := resolvedRegistry(t, doc)

	def, err := Build(doc, reg)
	require.NoError(t, err)
	require.Equal(t, ir.KindLLM, def.Nodes["n1"].Kind)
	require.NotNil(t, def.Nodes["n1"].Callable)
}

func TestBuildUnknownDeclaredTypeErrors(t *testing.T) {
	doc := baseDoc()
	doc.Graph.Nodes["n1"].DeclaredTyp = "not-a-kind"
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrNodeType, gErr.Code)
}

func TestBuildLLMRequiresComponent(t *testing.T) {
	doc := baseDoc()
	doc.Graph.Nodes["n1"].DeclaredTyp = "llm"
	doc.Graph.Nodes["n1"].ComponentID = ""
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrComponentRequired, gErr.Code)
}

func TestBuildLLMRequiresResolvedProvider(t *testing.T) {
	doc := baseDoc()
	doc.Components["c1"] = ir.Component{ID: "c1", Type: "llm", ProviderID: ""}
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrProviderUnresolved, gErr.Code)
}

func TestBuildToolRequiresToolID(t *testing.T) {
	doc := baseDoc()
	doc.Components["c1"] = ir.Component{ID: "c1", Type: "tool", ProviderID: "p1"}
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrToolUnresolved, gErr.Code)
}

func TestBuildToolCarriesPermissions(t *testing.T) {
	doc := baseDoc()
	doc.Tools = map[string]ir.Tool{"t1": {ID: "t1", Type: "http_request", ProviderID: "p1"}}
	doc.Components["c1"] = ir.Component{ID: "c1", Type: "tool", ProviderID: "p1", ToolID: "t1"}
	reg := registry.New(doc)
	reg.RegisterProviderFactory("fake", func(desc ir.Provider) (map[string]interface{}, error) {
		return map[string]interface{}{}, nil
	})
	reg.RegisterToolFactory("http_request", func(ir.Tool, map[string]interface{}) (interface{}, error) {
		return permissionedTool{}, nil
	})
	reg.RegisterComponentFactory("tool", func(ir.Component, map[string]interface{}, interface{}) (interface{}, error) {
		return stubCallable{}, nil
	})
	require.NoError(t, reg.Resolve())

	def, err := Build(doc, reg)
	require.NoError(t, err)
	require.Equal(t, []string{"net.http"}, def.Nodes["n1"].Permissions)
}

type permissionedTool struct{ stubCallable }

func (permissionedTool) Permissions() []string { return []string{"net.http"} }

func TestBuildRouterRequiresRoutes(t *testing.T) {
	doc := baseDoc()
	doc.Graph.Nodes["n1"] = &ir.Node{ID: "n1", DeclaredTyp: "router", Pointer: "$/graph/nodes/0"}
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrRouterNoRoutes, gErr.Code)
}

func TestBuildMapRequiresComponent(t *testing.T) {
	doc := baseDoc()
	doc.Graph.Nodes["n1"] = &ir.Node{ID: "n1", DeclaredTyp: "map", Pointer: "$/graph/nodes/0"}
	reg := resolvedRegistry(t, doc)

	_, err := Build(doc, reg)
	require.Error(t, err)
	var gErr *Error
	require.ErrorAs(t, err, &gErr)
	require.Equal(t, ErrMapComponentRequired, gErr.Code)
}

func TestBuildMergesNodeConfigOverComponentConfig(t *testing.T) {
	doc := baseDoc()
	doc.Components["c1"] = ir.Component{
		ID: "c1", Type: "map", ProviderID: "p1",
		Config: map[string]interface{}{"collection": "graph.inputs.items", "result_key": "out"},
	}
	doc.Graph.Nodes["n1"] = &ir.Node{
		ID: "n1", DeclaredTyp: "map", ComponentID: "c1", Pointer: "$/graph/nodes/0",
		Config: map[string]interface{}{"result_key": "overridden"},
	}
	reg := resolvedRegistry(t, doc)

	def, err := Build(doc, reg)
	require.NoError(t, err)
	require.Equal(t, "graph.inputs.items", def.Nodes["n1"].Config["collection"])
	require.Equal(t, "overridden", def.Nodes["n1"].Config["result_key"])
}

func TestBuildInheritsComponentInputsOutputsWhenNodeOmitsThem(t *testing.T) {
	doc := baseDoc()
	doc.Components["c1"] = ir.Component{
		ID: "c1", Type: "llm", ProviderID: "p1",
		Inputs:  map[string]string{"prompt": "$.input.text"},
		Outputs: map[string]string{"text": "$.text"},
	}
	reg := resolvedRegistry(t, doc)

	def, err := Build(doc, reg)
	require.NoError(t, err)
	require.Equal(t, "$.input.text", def.Nodes["n1"].Inputs["prompt"])
	require.Equal(t, "$.text", def.Nodes["n1"].Outputs["text"])
}
