// Package component defines the contract between the scheduler and the
// provider/tool/component factories an embedder registers. It is the Go
// rendering of spec §6's "component callable" and "mutable mapping passed as
// context": a concrete struct with a typed surface instead of a duck-typed
// mapping, and explicit interfaces instead of attribute probing.
package component

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StateView is the read-only state a component sees when invoked: the run's
// initial inputs plus the named outputs of every node that has already
// completed on the path leading to this one.
type StateView struct {
	GraphInputs map[string]interface{}
	Nodes       map[string]map[string]interface{}
}

// LoopContext carries the current item and index during a map iteration. It
// is present on InvocationContext only while a map node's body is executing
// and is cleared immediately afterward.
type LoopContext struct {
	Item  interface{}
	Index int
}

// Emitter sends a structured event up to the run's event bus. Concrete
// component implementations use it to surface provider-specific telemetry
// (token counts, HTTP status, …) beyond what the scheduler emits itself.
type Emitter func(event string, fields map[string]interface{})

// CancelToken is the single per-run cancellation signal every component can
// observe. Cancel is idempotent: calling it more than once, or from more
// than one goroutine, has the same effect as calling it exactly once.
type CancelToken struct {
	once sync.Once
	done chan struct{}
}

// NewCancelToken returns a ready-to-use, un-cancelled token.
func NewCancelToken() *CancelToken {
	return &CancelToken{done: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call concurrently and more than
// once.
func (c *CancelToken) Cancel() {
	c.once.Do(func() { close(c.done) })
}

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed exactly once Cancel is called, for use in
// select statements alongside context cancellation.
func (c *CancelToken) Done() <-chan struct{} {
	return c.done
}

// InvocationContext is the live, mutable context passed to every component
// invocation. It replaces the source system's ad hoc mutable mapping with a
// concrete, typed struct.
type InvocationContext struct {
	NodeID    string
	GraphName string
	Config    map[string]interface{}
	Emit      Emitter
	Cancel    *CancelToken
	Deadline  time.Time
	Registry  Lookup
	Logger    zerolog.Logger

	// Loop is non-nil only while this invocation is one iteration of a map
	// node's body.
	Loop *LoopContext
}

// Lookup is the narrow registry surface a running component may use to
// reach sibling providers and history backends by id. It is satisfied by
// *registry.Registry without this package importing registry, avoiding an
// import cycle between component and registry.
type Lookup interface {
	Provider(id string) (map[string]interface{}, bool)

	// History returns the materialized conversation-history backend
	// registered under id (a spec §3 history descriptor), if any.
	History(id string) (interface{}, bool)
}

// Callable is what a component factory must ultimately produce: a value
// that can be invoked with resolved inputs against a state view. The
// parameter order (ctx first) follows this codebase's convention for every
// other asynchronous entry point; spec §6 lists state/inputs/ctx, the
// ordering is otherwise unchanged.
type Callable interface {
	Call(ctx context.Context, state StateView, inputs map[string]interface{}) (map[string]interface{}, error)
}

// BeforeExecutor is an optional hook a Callable may additionally implement
// to rewrite its inputs immediately before Call.
type BeforeExecutor interface {
	BeforeExecute(ctx context.Context, inputs map[string]interface{}, ictx *InvocationContext) (map[string]interface{}, error)
}

// AfterExecutor is an optional hook a Callable may implement to rewrite its
// result immediately after a successful Call.
type AfterExecutor interface {
	AfterExecute(ctx context.Context, result map[string]interface{}, ictx *InvocationContext) (map[string]interface{}, error)
}

// ErrorHandler is an optional hook invoked when Call (after retries are
// exhausted) fails. It observes the error; it never absorbs it.
type ErrorHandler interface {
	OnError(ctx context.Context, cause error, inputs map[string]interface{}, ictx *InvocationContext)
}

// Closer is an optional hook for components that hold resources (HTTP
// clients, DB pools, provider SDK handles). Close is called at most once
// per GraphDefinition, regardless of how many runs execute against it.
type Closer interface {
	Close() error
}

// PermissionSource is an optional interface a materialized tool instance
// may implement to declare the permissions it requires. Tool factories that
// return a value not implementing this interface are treated as requiring
// no permissions.
type PermissionSource interface {
	Permissions() []string
}
