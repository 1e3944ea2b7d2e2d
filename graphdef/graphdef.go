package graphdef

import (
	"fmt"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/registry"
)

// knownKinds is the set of node kinds a declared or inherited `type` may
// resolve to (spec §4.3 Kind inference).
var knownKinds = map[ir.NodeKind]bool{
	ir.KindComponent: true,
	ir.KindLLM:       true,
	ir.KindTool:      true,
	ir.KindRouter:    true,
	ir.KindMap:       true,
	ir.KindParallel:  true,
}

// NodeSpec is a single node's compiled, ready-to-run definition.
type NodeSpec struct {
	ID          string
	Kind        ir.NodeKind
	Callable    component.Callable // nil when the node has no component
	ComponentID string             // bound component id, if any
	ToolID      string             // component's bound tool, if any (kind==tool)
	ProviderID  string             // component's bound provider, if any
	Permissions []string           // tool's declared permissions, if any (kind==tool)

	Inputs  map[string]string
	Outputs map[string]string
	Next    []string
	Routes  map[string]string
	Config  map[string]interface{}

	Pointer string
}

// GraphDefinition is the compiled executable graph the scheduler runs.
type GraphDefinition struct {
	EntryID   string
	Nodes     map[string]*NodeSpec
	Order     []string
	Outputs   []ir.Output
	Reachable map[string]bool
}

// Build compiles a normalized IR document against an already-Resolve'd
// registry into a GraphDefinition, enforcing the node-kind preconditions of
// spec §4.3. Resolve must have succeeded before Build is called.
func Build(doc *ir.IR, reg *registry.Registry) (*GraphDefinition, error) {
	def := &GraphDefinition{
		EntryID:   doc.Graph.EntryID,
		Nodes:     make(map[string]*NodeSpec, len(doc.Graph.Nodes)),
		Outputs:   doc.Graph.Outputs,
		Reachable: doc.Reachable,
	}

	for _, id := range doc.Graph.Order {
		node := doc.Graph.Nodes[id]

		kind, err := inferKind(node, doc.Components)
		if err != nil {
			return nil, newErr(ErrNodeType, node.Pointer, "node %q: %v", id, err)
		}

		var comp *ir.Component
		if node.ComponentID != "" {
			c := doc.Components[node.ComponentID]
			comp = &c
		}

		if (kind == ir.KindLLM || kind == ir.KindTool || kind == ir.KindMap) && comp == nil {
			code := ErrComponentRequired
			if kind == ir.KindMap {
				code = ErrMapComponentRequired
			}
			return nil, newErr(code, node.Pointer, "node %q (%s) requires a component", id, kind)
		}

		if kind == ir.KindLLM || kind == ir.KindTool {
			if comp.ProviderID == "" {
				return nil, newErr(ErrProviderUnresolved, node.Pointer,
					"node %q's component %q has no resolvable provider", id, comp.ID)
			}
			if _, ok := reg.Provider(comp.ProviderID); !ok {
				return nil, newErr(ErrProviderUnresolved, node.Pointer,
					"node %q's provider %q did not resolve", id, comp.ProviderID)
			}
		}

		var toolID string
		var permissions []string
		if kind == ir.KindTool {
			if comp.ToolID == "" {
				return nil, newErr(ErrToolUnresolved, node.Pointer,
					"node %q's component %q does not reference a tool", id, comp.ID)
			}
			toolInstance, ok := reg.Tool(comp.ToolID)
			if !ok {
				return nil, newErr(ErrToolUnresolved, node.Pointer,
					"node %q's tool %q did not resolve", id, comp.ToolID)
			}
			toolID = comp.ToolID
			permissions = toolInstance.Permissions
		}

		var providerID string
		if comp != nil {
			providerID = comp.ProviderID
		}

		if kind == ir.KindRouter && len(node.Routes) == 0 {
			return nil, newErr(ErrRouterNoRoutes, node.Pointer, "router node %q has no routes", id)
		}

		var callable component.Callable
		inputs, outputs := node.Inputs, node.Outputs
		if comp != nil {
			callable, _ = reg.Component(comp.ID)
			if len(inputs) == 0 {
				inputs = comp.Inputs
			}
			if len(outputs) == 0 {
				outputs = comp.Outputs
			}
		}

		cfg := node.Config
		if (kind == ir.KindMap || kind == ir.KindParallel) && comp != nil {
			cfg = mergeConfig(comp.Config, node.Config)
		}

		componentID := ""
		if comp != nil {
			componentID = comp.ID
		}

		def.Nodes[id] = &NodeSpec{
			ID: id, Kind: kind, Callable: callable, ComponentID: componentID,
			ToolID: toolID, ProviderID: providerID, Permissions: permissions,
			Inputs: inputs, Outputs: outputs, Next: node.Next, Routes: node.Routes,
			Config: cfg, Pointer: node.Pointer,
		}
		def.Order = append(def.Order, id)
	}

	return def, nil
}

// inferKind applies spec §4.3's kind-inference rule: the node's declared
// type wins if it names a known kind; otherwise the attached component's
// type is used if it names a known kind; otherwise the node defaults to a
// plain component invocation only when no type was declared at all.
func inferKind(node *ir.Node, components map[string]ir.Component) (ir.NodeKind, error) {
	if node.DeclaredTyp != "" {
		k := ir.NodeKind(node.DeclaredTyp)
		if knownKinds[k] {
			return k, nil
		}
		return "", fmt.Errorf("unknown node type %q", node.DeclaredTyp)
	}
	if node.ComponentID != "" {
		if c, ok := components[node.ComponentID]; ok {
			k := ir.NodeKind(toLowerASCII(c.Type))
			if knownKinds[k] {
				return k, nil
			}
		}
	}
	return ir.KindComponent, nil
}

// mergeConfig overlays node config onto component config, node wins (spec
// §4.3 "Config merging"). Neither input is mutated.
func mergeConfig(base, overlay map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
