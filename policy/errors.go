// Package policy implements the retry engine, rate limiters, permission
// gate, cost limiter, and masking engine the scheduler consults on every
// node invocation (spec §4.5-§4.9).
package policy

import "fmt"

// Error is the policy layer's structured diagnostic.
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

// ErrCode satisfies the shared CodedError contract.
func (e *Error) ErrCode() string { return e.Code }

const (
	ErrRetryPredicate    = "ERR_RETRY_PREDICATE"
	ErrRLPolicyParam     = "ERR_RL_POLICY_PARAM"
	ErrCostLimitExceeded = "ERR_COST_LIMIT_EXCEEDED"
	ErrToolPermDenied    = "ERR_TOOL_PERMISSION_DENIED"
)
