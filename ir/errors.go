// Package ir lowers a parsed workflow document into immutable intermediate
// representation entities (providers, tools, components, graph nodes,
// outputs, policies, histories), cross-referencing ids and validating
// reachability.
package ir

import "fmt"

// Error is a structured IR/document error carrying a stable machine-readable
// code, a human message, and a JSON-pointer-style locator into the source
// document. All layers of flowgraph (ir, registry, graphdef, scheduler,
// policy) return errors of this shape so callers can branch on Code per
// spec's stable error-code contract.
type Error struct {
	Code    string
	Message string
	Pointer string
}

func (e *Error) Error() string {
	if e.Pointer != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Pointer)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrCode exposes the stable machine-readable code, satisfying the shared
// policy.CodedError contract so the retry engine can branch on errors
// produced by any layer.
func (e *Error) ErrCode() string { return e.Code }

func newErr(code, pointer, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Pointer: pointer}
}

// Stable error codes, part of the public contract (spec §6).
const (
	ErrYAMLDuplicateKey     = "ERR_YAML_DUPLICATE_KEY"
	ErrDocumentSchema       = "ERR_DOCUMENT_SCHEMA"
	ErrUnsupportedEngine    = "ERR_UNSUPPORTED_ENGINE"
	ErrDuplicateID          = "ERR_DUPLICATE_ID"
	ErrProviderDefaultMiss  = "ERR_PROVIDER_DEFAULT_MISSING"
	ErrToolProviderMissing  = "ERR_TOOL_PROVIDER_MISSING"
	ErrComponentToolMissing = "ERR_COMPONENT_TOOL_NOT_FOUND"
	ErrGraphEntryNotFound   = "ERR_GRAPH_ENTRY_NOT_FOUND"
	ErrEdgeEndpointInvalid  = "ERR_EDGE_ENDPOINT_INVALID"
	ErrOutputNodeInvalid    = "ERR_OUTPUT_NODE_INVALID"
	ErrHistoryDuplicateID   = "ERR_HISTORY_DUPLICATE_ID"
	ErrNodeComponentMissing = "ERR_NODE_COMPONENT_NOT_FOUND"
	ErrRouterNoRoutes       = "ERR_ROUTER_NO_ROUTES"
)
