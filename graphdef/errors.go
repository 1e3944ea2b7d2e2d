// Package graphdef folds normalized IR and resolved registry objects into a
// GraphDefinition: a per-node NodeSpec carrying kind, resolved callable,
// dataflow wiring, and merged config (spec §4.3).
package graphdef

import "fmt"

// Error is the graph-builder layer's structured diagnostic.
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

func newErr(code, pointer, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Pointer: pointer}
}

// ErrCode satisfies the shared policy.CodedError contract.
func (e *Error) ErrCode() string { return e.Code }

const (
	ErrNodeType             = "ERR_NODE_TYPE"
	ErrComponentRequired    = "ERR_COMPONENT_REQUIRED"
	ErrProviderUnresolved   = "ERR_PROVIDER_UNRESOLVED"
	ErrToolUnresolved       = "ERR_TOOL_UNRESOLVED"
	ErrRouterNoRoutes       = "ERR_ROUTER_NO_ROUTES"
	ErrMapComponentRequired = "ERR_MAP_COMPONENT_REQUIRED"
)
