package ir

import (
	"github.com/go-playground/validator/v10"
)

// RawDocument is the typed schema the document model validates against. It
// mirrors spec §6's top-level keys: meta, runtime, providers, tools?,
// components?, graph, policies?, histories?. Struct tags stand in for the
// JSON-schema validation spec §4.1/§6 call for; `validate` constraints are
// enforced by validateStruct below, the closest third-party-library
// equivalent available in the retrieved corpus (see DESIGN.md).
type RawDocument struct {
	Meta       RawMeta        `yaml:"meta" validate:"required"`
	Runtime    RawRuntime     `yaml:"runtime" validate:"required"`
	Providers  []RawProvider  `yaml:"providers" validate:"dive"`
	Tools      []RawTool      `yaml:"tools" validate:"dive"`
	Components []RawComponent `yaml:"components" validate:"dive"`
	Graph      RawGraph       `yaml:"graph" validate:"required"`
	Policies   RawPolicies    `yaml:"policies"`
	Histories  []RawHistory   `yaml:"histories" validate:"dive"`
}

// RawMeta holds document metadata. Version is echoed verbatim into the IR.
type RawMeta struct {
	Version string                 `yaml:"version"`
	Extra   map[string]interface{} `yaml:",inline"`
}

// RawRuntime declares the execution engine and default bindings.
type RawRuntime struct {
	Engine      string                 `yaml:"engine" validate:"required"`
	Defaults    RawDefaults            `yaml:"defaults"`
	ErrorPolicy map[string]interface{} `yaml:"error_policy"`
}

// RawDefaults holds runtime-wide defaults inherited by components.
type RawDefaults struct {
	Provider string `yaml:"provider"`
}

// RawProvider is one entry of the top-level providers list.
type RawProvider struct {
	ID     string                 `yaml:"id" validate:"required"`
	Type   string                 `yaml:"type" validate:"required"`
	Config map[string]interface{} `yaml:"config"`
}

// RawTool is one entry of the top-level tools list.
type RawTool struct {
	ID       string                 `yaml:"id" validate:"required"`
	Type     string                 `yaml:"type" validate:"required"`
	Provider string                 `yaml:"provider"`
	Config   map[string]interface{} `yaml:"config"`
}

// RawComponent is one entry of the top-level components list.
type RawComponent struct {
	ID       string                 `yaml:"id" validate:"required"`
	Type     string                 `yaml:"type" validate:"required"`
	Provider string                 `yaml:"provider"`
	Tool     string                 `yaml:"tool"`
	Inputs   map[string]string      `yaml:"inputs"`
	Outputs  map[string]string      `yaml:"outputs"`
	Config   map[string]interface{} `yaml:"config"`
}

// RawGraph is the graph block: entry node, node list, and declared outputs.
type RawGraph struct {
	Entry   string      `yaml:"entry" validate:"required"`
	Nodes   []RawNode   `yaml:"nodes" validate:"required,dive"`
	Outputs []RawOutput `yaml:"outputs"`
}

// RawNode is one graph node definition.
type RawNode struct {
	ID        string                 `yaml:"id" validate:"required"`
	Type      string                 `yaml:"type"`
	Component string                 `yaml:"component"`
	Next      []string               `yaml:"next"`
	Routes    map[string]string      `yaml:"routes"`
	Inputs    map[string]string      `yaml:"inputs"`
	Outputs   map[string]string      `yaml:"outputs"`
	Config    map[string]interface{} `yaml:"config"`
}

// RawOutput declares one graph-level output binding.
type RawOutput struct {
	Key    string `yaml:"key" validate:"required"`
	Node   string `yaml:"node" validate:"required"`
	Output string `yaml:"output" validate:"required"`
}

// RawPolicies carries the opaque per-concern policy configuration blocks
// that the policy package parses into typed configs (spec §4.5-§4.9).
type RawPolicies struct {
	Retry       map[string]interface{} `yaml:"retry"`
	RateLimits  map[string]interface{} `yaml:"rate_limits"`
	Permissions map[string]interface{} `yaml:"permissions"`
	Cost        map[string]interface{} `yaml:"cost"`
	Masking     map[string]interface{} `yaml:"masking"`
	ErrorPolicy map[string]interface{} `yaml:"error_policy"`
}

// RawHistory is one named conversation-backend descriptor.
type RawHistory struct {
	ID     string                 `yaml:"id" validate:"required"`
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config"`
}

// SupportedEngines lists the `runtime.engine` values this build accepts.
// Only "lc.lcel" is accepted by default per spec §6.
var SupportedEngines = map[string]bool{
	"lc.lcel": true,
}

var structValidator = validator.New()

// validateStruct runs go-playground/validator's struct-tag validation over
// the decoded document, the schema-validation layer spec §4.1 requires.
func validateStruct(doc *RawDocument) error {
	if err := structValidator.Struct(doc); err != nil {
		return newErr(ErrDocumentSchema, "$", "schema validation failed: %v", err)
	}
	if !SupportedEngines[doc.Runtime.Engine] {
		return newErr(ErrUnsupportedEngine, "$/runtime/engine",
			"unsupported engine %q", doc.Runtime.Engine)
	}
	return nil
}

// Validate runs schema validation (struct tags + supported-engine check)
// over the parsed document without doing cross-reference or reachability
// analysis; those are Normalize's job.
func (d *Document) Validate() error {
	return validateStruct(&d.Raw)
}
