package ir

// NodeKind enumerates the accepted graph node kinds (spec §3 GLOSSARY).
type NodeKind string

const (
	KindComponent NodeKind = "component"
	KindLLM       NodeKind = "llm"
	KindTool      NodeKind = "tool"
	KindRouter    NodeKind = "router"
	KindMap       NodeKind = "map"
	KindParallel  NodeKind = "parallel"
)

// Provider is an immutable IR entity: id, factory-selector type, and opaque
// config. Providers are materialized once by the registry and cached by id.
type Provider struct {
	ID     string
	Type   string
	Config map[string]interface{}
}

// Tool is an immutable IR entity referencing an optional provider.
type Tool struct {
	ID         string
	Type       string
	ProviderID string // empty if none
	Config     map[string]interface{}
}

// Component is the unit that knows how to transform inputs into results.
// ProviderID may be empty (inherited default applied already) and ToolID is
// optional.
type Component struct {
	ID         string
	Type       string
	ProviderID string // resolved/defaulted; empty means "no provider"
	ToolID     string // empty if none
	Inputs     map[string]string
	Outputs    map[string]string
	Config     map[string]interface{}
}

// Node is a graph node in IR form, prior to kind inference and callable
// resolution (that happens in graphdef).
type Node struct {
	ID          string
	DeclaredTyp string // raw `type` field, lowercased; may be empty
	ComponentID string
	Next        []string
	Routes      map[string]string
	Inputs      map[string]string
	Outputs     map[string]string
	Config      map[string]interface{}
	Pointer     string // JSON-pointer-style locator for diagnostics
}

// Output is a declared graph-level output binding.
type Output struct {
	Key    string
	NodeID string
	Output string
}

// GraphIR is the normalized graph: entry, node table, declared outputs.
type GraphIR struct {
	EntryID string
	Nodes   map[string]*Node
	Order   []string // insertion order, for deterministic iteration
	Outputs []Output
}

// HistoryDescriptor is a normalized named conversation-backend descriptor.
type HistoryDescriptor struct {
	ID     string
	Type   string
	Config map[string]interface{}
}

// Meta carries echoed document metadata.
type Meta struct {
	Version string
}

// IR is the fully normalized, cross-referenced intermediate representation
// produced by Normalize. It is immutable once returned: callers must not
// mutate the maps/slices it exposes.
type IR struct {
	Meta            Meta
	Engine          string
	DefaultProvider string // empty if unset
	Providers       map[string]Provider
	ProviderOrder   []string
	Tools           map[string]Tool
	ToolOrder       []string
	Components      map[string]Component
	ComponentOrder  []string
	Graph           GraphIR
	Histories       map[string]HistoryDescriptor
	HistoryOrder    []string
	Policies        RawPolicies
	Reachable       map[string]bool // node id -> reached from entry
}
