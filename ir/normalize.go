package ir

import (
	"fmt"
	"strings"
)

// Normalize lowers a validated Document into immutable IR, per spec §4.1.
// It never mutates the Document. Fatal problems (missing cross-references,
// unknown entry node, etc.) are returned as *Error; everything else
// accumulates as warnings and normalization proceeds.
func Normalize(doc *Document) (*IR, []Warning, error) {
	if err := doc.Validate(); err != nil {
		return nil, nil, err
	}

	raw := &doc.Raw
	var warnings []Warning

	out := &IR{
		Meta:      Meta{Version: raw.Meta.Version},
		Engine:    raw.Runtime.Engine,
		Providers: make(map[string]Provider, len(raw.Providers)),
		Tools:     make(map[string]Tool, len(raw.Tools)),
		Components: make(map[string]Component, len(raw.Components)),
		Histories: make(map[string]HistoryDescriptor, len(raw.Histories)),
	}

	// --- Providers ---
	for i, p := range raw.Providers {
		ptr := fmt.Sprintf("$/providers/%d", i)
		if _, exists := out.Providers[p.ID]; exists {
			return nil, nil, newErr(ErrDuplicateID, ptr, "duplicate provider id %q", p.ID)
		}
		out.Providers[p.ID] = Provider{ID: p.ID, Type: p.Type, Config: p.Config}
		out.ProviderOrder = append(out.ProviderOrder, p.ID)
	}

	// --- Runtime defaults ---
	if raw.Runtime.Defaults.Provider != "" {
		if _, ok := out.Providers[raw.Runtime.Defaults.Provider]; !ok {
			return nil, nil, newErr(ErrProviderDefaultMiss, "$/runtime/defaults/provider",
				"default provider %q does not resolve", raw.Runtime.Defaults.Provider)
		}
		out.DefaultProvider = raw.Runtime.Defaults.Provider
	}
	if raw.Runtime.ErrorPolicy != nil {
		warnings = append(warnings, Warning{
			Code:    WarnLegacyErrorPolicy,
			Message: "runtime.error_policy is a legacy key; migrate to policies.retry",
			Pointer: "$/runtime/error_policy",
		})
	}

	// --- Tools ---
	for i, t := range raw.Tools {
		ptr := fmt.Sprintf("$/tools/%d", i)
		if _, exists := out.Tools[t.ID]; exists {
			return nil, nil, newErr(ErrDuplicateID, ptr, "duplicate tool id %q", t.ID)
		}
		if t.Provider != "" {
			if _, ok := out.Providers[t.Provider]; !ok {
				return nil, nil, newErr(ErrToolProviderMissing, ptr+"/provider",
					"tool %q references undefined provider %q", t.ID, t.Provider)
			}
		}
		out.Tools[t.ID] = Tool{ID: t.ID, Type: t.Type, ProviderID: t.Provider, Config: t.Config}
		out.ToolOrder = append(out.ToolOrder, t.ID)
	}

	// --- Components ---
	for i, c := range raw.Components {
		ptr := fmt.Sprintf("$/components/%d", i)
		if _, exists := out.Components[c.ID]; exists {
			return nil, nil, newErr(ErrDuplicateID, ptr, "duplicate component id %q", c.ID)
		}

		providerID := c.Provider
		if providerID == "" {
			providerID = out.DefaultProvider
		}
		if providerID != "" {
			if _, ok := out.Providers[providerID]; !ok {
				return nil, nil, newErr(ErrProviderDefaultMiss, ptr+"/provider",
					"component %q references undefined provider %q", c.ID, providerID)
			}
		} else {
			warnings = append(warnings, Warning{
				Code:    WarnComponentNoProvider,
				Message: fmt.Sprintf("component %q has no provider and no runtime default; cannot back llm/tool nodes", c.ID),
				Pointer: ptr,
			})
		}

		if c.Tool != "" {
			if _, ok := out.Tools[c.Tool]; !ok {
				return nil, nil, newErr(ErrComponentToolMissing, ptr+"/tool",
					"component %q references undefined tool %q", c.ID, c.Tool)
			}
		}

		inputs, outputs := c.Inputs, c.Outputs
		if len(inputs) == 0 {
			warnings = append(warnings, Warning{Code: WarnComponentEmptyIO,
				Message: fmt.Sprintf("component %q has no declared inputs", c.ID), Pointer: ptr + "/inputs"})
			inputs = map[string]string{}
		}
		if len(outputs) == 0 {
			warnings = append(warnings, Warning{Code: WarnComponentEmptyIO,
				Message: fmt.Sprintf("component %q has no declared outputs", c.ID), Pointer: ptr + "/outputs"})
			outputs = map[string]string{}
		}

		out.Components[c.ID] = Component{
			ID: c.ID, Type: c.Type, ProviderID: providerID, ToolID: c.Tool,
			Inputs: inputs, Outputs: outputs, Config: c.Config,
		}
		out.ComponentOrder = append(out.ComponentOrder, c.ID)
	}

	// --- Graph ---
	graphIR := GraphIR{Nodes: make(map[string]*Node, len(raw.Graph.Nodes))}
	for i, n := range raw.Graph.Nodes {
		ptr := fmt.Sprintf("$/graph/nodes/%d", i)
		if _, exists := graphIR.Nodes[n.ID]; exists {
			return nil, nil, newErr(ErrDuplicateID, ptr, "duplicate node id %q", n.ID)
		}
		if n.Component != "" {
			if _, ok := out.Components[n.Component]; !ok {
				return nil, nil, newErr(ErrNodeComponentMissing, ptr+"/component",
					"node %q references undefined component %q", n.ID, n.Component)
			}
		}
		node := &Node{
			ID: n.ID, DeclaredTyp: strings.ToLower(n.Type), ComponentID: n.Component,
			Next: n.Next, Routes: n.Routes, Inputs: n.Inputs, Outputs: n.Outputs,
			Config: n.Config, Pointer: ptr,
		}
		graphIR.Nodes[n.ID] = node
		graphIR.Order = append(graphIR.Order, n.ID)
	}

	graphIR.EntryID = raw.Graph.Entry
	if _, ok := graphIR.Nodes[graphIR.EntryID]; !ok {
		return nil, nil, newErr(ErrGraphEntryNotFound, "$/graph/entry",
			"entry node %q does not exist", graphIR.EntryID)
	}

	for _, nodeID := range graphIR.Order {
		node := graphIR.Nodes[nodeID]
		for _, next := range node.Next {
			if _, ok := graphIR.Nodes[next]; !ok {
				return nil, nil, newErr(ErrEdgeEndpointInvalid, node.Pointer+"/next",
					"node %q next target %q does not exist", node.ID, next)
			}
		}
		for discriminant, target := range node.Routes {
			if _, ok := graphIR.Nodes[target]; !ok {
				return nil, nil, newErr(ErrEdgeEndpointInvalid, node.Pointer+"/routes/"+discriminant,
					"node %q route %q -> %q does not exist", node.ID, discriminant, target)
			}
		}
		if branches, ok := stringSlice(node.Config["branches"]); ok {
			for _, b := range branches {
				if _, ok := graphIR.Nodes[b]; !ok {
					return nil, nil, newErr(ErrEdgeEndpointInvalid, node.Pointer+"/config/branches",
						"node %q branch %q does not exist", node.ID, b)
				}
			}
		}
	}

	for i, o := range raw.Graph.Outputs {
		ptr := fmt.Sprintf("$/graph/outputs/%d", i)
		node, ok := graphIR.Nodes[o.Node]
		if !ok {
			return nil, nil, newErr(ErrOutputNodeInvalid, ptr+"/node",
				"output %q references undefined node %q", o.Key, o.Node)
		}
		if len(node.Outputs) > 0 {
			if _, ok := node.Outputs[o.Output]; !ok {
				return nil, nil, newErr(ErrOutputNodeInvalid, ptr+"/output",
					"output %q references undefined output %q on node %q", o.Key, o.Output, o.Node)
			}
		}
		graphIR.Outputs = append(graphIR.Outputs, Output{Key: o.Key, NodeID: o.Node, Output: o.Output})
	}

	// Reachability (breadth-first from entry).
	reachable := map[string]bool{graphIR.EntryID: true}
	queue := []string{graphIR.EntryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node := graphIR.Nodes[id]
		for _, succ := range successors(node) {
			if _, ok := graphIR.Nodes[succ]; !ok {
				continue
			}
			if !reachable[succ] {
				reachable[succ] = true
				queue = append(queue, succ)
			}
		}
	}
	for _, nodeID := range graphIR.Order {
		if !reachable[nodeID] {
			warnings = append(warnings, Warning{
				Code:    WarnNodeUnreachable,
				Message: fmt.Sprintf("node %q is not reachable from entry %q", nodeID, graphIR.EntryID),
				Pointer: graphIR.Nodes[nodeID].Pointer,
			})
		}
	}
	out.Reachable = reachable
	out.Graph = graphIR

	// --- Histories ---
	for i, h := range raw.Histories {
		ptr := fmt.Sprintf("$/histories/%d", i)
		if _, exists := out.Histories[h.ID]; exists {
			return nil, nil, newErr(ErrHistoryDuplicateID, ptr, "duplicate history id %q", h.ID)
		}
		cfg := h.Config
		if cfg == nil {
			cfg = map[string]interface{}{}
		}
		typ := h.Type
		if typ == "" {
			typ = "memory"
		}
		out.Histories[h.ID] = HistoryDescriptor{ID: h.ID, Type: typ, Config: cfg}
		out.HistoryOrder = append(out.HistoryOrder, h.ID)
	}

	if raw.Policies.ErrorPolicy != nil {
		warnings = append(warnings, Warning{
			Code:    WarnLegacyErrorPolicy,
			Message: "policies.error_policy is a legacy key; migrate to policies.retry",
			Pointer: "$/policies/error_policy",
		})
	}
	out.Policies = raw.Policies

	return out, warnings, nil
}

// successors returns every node id a node might transition to, for
// reachability purposes: explicit next_nodes, route targets, and (for map /
// parallel nodes) config-declared branches.
func successors(node *Node) []string {
	out := append([]string{}, node.Next...)
	for _, target := range node.Routes {
		out = append(out, target)
	}
	if branches, ok := stringSlice(node.Config["branches"]); ok {
		out = append(out, branches...)
	}
	return out
}

func stringSlice(v interface{}) ([]string, bool) {
	switch vv := v.(type) {
	case []string:
		return vv, true
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}
