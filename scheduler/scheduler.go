// Package scheduler implements the DAG execution loop of spec §4.4: a FIFO
// pending list over a GraphDefinition, component invocation with retry/
// rate-limit/permission/cost enforcement wrapped around each call, router
// branching, sequential map iteration, and parallel fan-out with merge
// policies.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flowforge/flowgraph/bus"
	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/graphdef"
	"github.com/flowforge/flowgraph/policy"
)

// graphFinishStatus classifies a run's terminal outcome into the four
// values spec §6 reserves for graph.finish.status: success, error, timeout,
// and cancelled (deadline exceeded and explicit cancellation are distinct
// causes, not both generic errors).
func graphFinishStatus(ctx context.Context, runErr error) string {
	if runErr == nil {
		return "success"
	}
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return "timeout"
	case context.Canceled:
		return "cancelled"
	}
	if schedErr, ok := runErr.(*Error); ok && schedErr.Code == ErrRunCancelled {
		return "cancelled"
	}
	return "error"
}

// Scheduler runs one GraphDefinition, possibly across many concurrent runs;
// it holds no per-run state itself (that lives in runState and the run's
// CancelToken). Close tears down the definition's components exactly once,
// regardless of how many runs preceded it (spec §4.4.8).
type Scheduler struct {
	def       *graphdef.GraphDefinition
	bus       *bus.Bus
	retry     *policy.RetryConfig
	rateLimit *policy.Manager
	graphName string
	lookup    component.Lookup

	closers   []component.Closer
	closeOnce sync.Once
}

// New builds a Scheduler over a compiled graph. retry and rateLimit may be
// nil, in which case retries never happen and rate limiting never waits.
// closers is the set of resolved components to tear down on Close,
// typically registry.Registry.Closers(). lookup (typically the same
// *registry.Registry) is handed to every invocation's InvocationContext so
// a component may resolve a sibling provider or history backend by id; it
// may be nil if no component needs it.
func New(def *graphdef.GraphDefinition, b *bus.Bus, retry *policy.RetryConfig, rateLimit *policy.Manager, graphName string, closers []component.Closer, lookup component.Lookup) *Scheduler {
	return &Scheduler{def: def, bus: b, retry: retry, rateLimit: rateLimit, graphName: graphName, closers: closers, lookup: lookup}
}

// Close releases every resource-holding component exactly once for this
// GraphDefinition (spec §4.4.8). Close errors are not returned; callers
// wanting visibility should inspect the bus's fallback buffer, since
// failures are reported as error.raised events under a synthetic run id.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				s.emit("__teardown__", bus.EventErrorRaised, map[string]interface{}{"error": err.Error(), "phase": "teardown"})
			}
		}
	})
}

// Run executes the graph once for runID, starting at the entry node,
// following next/route/branch edges until the frontier is empty, then
// returns the graph-level outputs addressed from accumulated node state.
func (s *Scheduler) Run(ctx context.Context, runID string, inputs map[string]interface{}, deadline time.Time) (map[string]interface{}, error) {
	cancel := component.NewCancelToken()
	defer cancel.Cancel()

	if !deadline.IsZero() {
		var timerCancel context.CancelFunc
		ctx, timerCancel = context.WithDeadline(ctx, deadline)
		defer timerCancel()
		go func() {
			<-ctx.Done()
			if ctx.Err() == context.DeadlineExceeded {
				s.emit(runID, bus.EventTimeout, map[string]interface{}{"deadline": deadline})
			}
			cancel.Cancel()
		}()
	}
	defer s.bus.Forget(runID)

	s.emit(runID, bus.EventGraphStart, map[string]interface{}{"graph": s.graphName, "entry": s.def.EntryID})

	state := newRunState(inputs)
	visited := make(map[string]bool)
	pending := []string{s.def.EntryID}

	var runErr error
runLoop:
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		if visited[id] {
			continue
		}
		visited[id] = true

		select {
		case <-ctx.Done():
			runErr = ctx.Err()
			break runLoop
		case <-cancel.Done():
			runErr = newErr(ErrRunCancelled, id, "run cancelled")
			break runLoop
		default:
		}

		node, ok := s.def.Nodes[id]
		if !ok {
			runErr = newErr(ErrNodeMissing, id, "node %q not found in graph definition", id)
			break
		}

		next, err := s.runNode(ctx, runID, node, state, cancel, deadline)
		if err != nil {
			s.emit(runID, bus.EventErrorRaised, map[string]interface{}{"node_id": id, "error": err.Error()})
			if !boolCfg(node.Config, "cancel_on_error", true) {
				// The node stores empty outputs and the run continues with
				// no successors from it (spec §7), rather than being
				// treated as a terminal run failure.
				state.record(id, map[string]interface{}{})
				continue
			}
			runErr = err
			break
		}
		pending = append(pending, next...)
	}

	if runErr != nil {
		s.emit(runID, bus.EventGraphFinish, map[string]interface{}{
			"graph": s.graphName, "status": graphFinishStatus(ctx, runErr), "error": runErr.Error(),
		})
		return nil, runErr
	}

	out := make(map[string]interface{}, len(s.def.Outputs))
	for _, o := range s.def.Outputs {
		out[o.Key] = addressPath(map[string]interface{}(state.nodeOutput(o.NodeID)), trimOutputPath(o.Output))
	}
	s.emit(runID, bus.EventGraphFinish, map[string]interface{}{"graph": s.graphName, "status": "success"})
	return out, nil
}

func trimOutputPath(expr string) string {
	if len(expr) > 0 && expr[0] == '$' {
		expr = expr[1:]
	}
	if len(expr) > 0 && expr[0] == '.' {
		expr = expr[1:]
	}
	return expr
}

// runNode dispatches to the kind-specific executor and returns the node ids
// it unblocks.
func (s *Scheduler) runNode(ctx context.Context, runID string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) ([]string, error) {
	start := time.Now()
	s.emit(runID, bus.EventNodeStart, map[string]interface{}{"node_id": node.ID, "kind": string(node.Kind)})

	var result map[string]interface{}
	var next []string
	var err error

	switch node.Kind {
	case "router":
		if node.Callable != nil {
			result, err = s.invoke(ctx, runID, node, state, nil, cancel, deadline)
			if err == nil {
				state.record(node.ID, result)
			}
		}
		if err == nil {
			next, err = s.runRouter(runID, node, state)
		}
	case "map":
		result, err = s.runMap(ctx, runID, node, state, cancel, deadline)
		if err == nil {
			state.record(node.ID, result)
			next = node.Next
		}
	case "parallel":
		result, err = s.runParallel(ctx, runID, node, state, cancel, deadline)
		if err == nil {
			state.record(node.ID, result)
			next = node.Next
		}
	default: // component, llm, tool
		result, err = s.invoke(ctx, runID, node, state, nil, cancel, deadline)
		if err == nil {
			state.record(node.ID, result)
			next = node.Next
		}
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	s.emit(runID, bus.EventNodeFinish, map[string]interface{}{
		"node_id": node.ID, "kind": string(node.Kind), "status": status,
		"duration_ms": float64(time.Since(start).Milliseconds()), "outputs": result,
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// runRouter selects the single next node from the router component's own
// "route" output field (spec §4.4.4): ignores node.Next entirely. A
// non-string route value is coerced with fmt.Sprint and reported via a
// warning.raised event rather than rejected.
func (s *Scheduler) runRouter(runID string, node *graphdef.NodeSpec, state *runState) ([]string, error) {
	out := state.nodeOutput(node.ID)
	var route string
	if out != nil {
		if raw, present := out["route"]; present {
			if v, ok := raw.(string); ok {
				route = v
			} else {
				route = fmt.Sprint(raw)
				s.emit(runID, bus.EventWarningRaised, map[string]interface{}{
					"node_id": node.ID, "message": "router route value was not a string, coerced", "value": raw,
				})
			}
		}
	}
	if target, ok := node.Routes[route]; ok {
		return []string{target}, nil
	}
	if target, ok := node.Routes["default"]; ok {
		return []string{target}, nil
	}
	return nil, newErr(ErrRouterNoMatch, node.ID, "route value %q matched no route and no default is configured", route)
}

// invoke performs one full component invocation, ordered per spec §4.4.3:
// permission check (once, not retried), then rate-limit acquire, input
// resolution, InvocationContext construction, before_execute, call,
// after_execute wrapped together in the retry loop, and finally output
// mapping. on_error fires once retries are exhausted, with the node's
// original inputs and a freshly built InvocationContext.
func (s *Scheduler) invoke(ctx context.Context, runID string, node *graphdef.NodeSpec, state *runState, loop *component.LoopContext, cancel *component.CancelToken, deadline time.Time) (map[string]interface{}, error) {
	if node.Callable == nil {
		return nil, newErr(ErrNodeRuntime, node.ID, "node has no resolved callable")
	}

	if node.Kind == "tool" {
		if _, err := s.bus.CheckToolPermission(node.ComponentID, node.Permissions); err != nil {
			return nil, err
		}
	}

	originalInputs := resolveInputs(node.Inputs, state, loop)
	pol := s.retry.For(node.ID)

	var result map[string]interface{}
	var callErr error
	for attempt := 1; ; attempt++ {
		callErr = nil
		inputs := resolveInputs(node.Inputs, state, loop)

		if s.rateLimit != nil {
			waited, err := s.rateLimit.Acquire(ctx, node.ID, node.ProviderID)
			if err != nil {
				callErr = err
			} else if waited > 0 {
				s.emit(runID, bus.EventRateLimitWait, map[string]interface{}{"node_id": node.ID, "scope": "node", "target": node.ID, "waited_ms": waited.Milliseconds()})
			}
		}

		var ictx *component.InvocationContext
		if callErr == nil {
			ictx = s.invocationContext(runID, node, cancel, deadline, loop)
			if before, ok := node.Callable.(component.BeforeExecutor); ok {
				updated, err := before.BeforeExecute(ctx, inputs, ictx)
				if err != nil {
					callErr = newErr(ErrNodeRuntime, node.ID, "before_execute: %v", err)
				} else if updated != nil {
					inputs = updated
				}
			}
		}

		if callErr == nil {
			result, callErr = node.Callable.Call(ctx, state.view(), inputs)
			s.emitKindCallEvent(runID, node, inputs, result)
			if callErr == nil {
				callErr = s.chargeLLMCost(runID, node, result)
			}
			if callErr == nil {
				if after, ok := node.Callable.(component.AfterExecutor); ok {
					updated, err := after.AfterExecute(ctx, result, ictx)
					if err != nil {
						callErr = newErr(ErrNodeRuntime, node.ID, "after_execute: %v", err)
					} else if updated != nil {
						result = updated
					}
				}
			}
		}

		if callErr == nil {
			break
		}
		if attempt >= pol.MaxAttempts || !policy.Retryable(callErr) {
			break
		}
		s.emit(runID, bus.EventRetryAttempt, map[string]interface{}{"node_id": node.ID, "attempt": attempt, "delay": pol.DelayForAttempt(attempt).Milliseconds(), "error": callErr.Error()})
		select {
		case <-time.After(pol.DelayForAttempt(attempt)):
		case <-ctx.Done():
			callErr = ctx.Err()
		case <-cancel.Done():
			callErr = newErr(ErrRunCancelled, node.ID, "run cancelled during retry backoff")
		}
		if callErr != nil && (callErr == ctx.Err() || !policy.Retryable(callErr)) {
			break
		}
	}

	if callErr != nil {
		if handler, ok := node.Callable.(component.ErrorHandler); ok {
			freshIctx := s.invocationContext(runID, node, cancel, deadline, loop)
			func() {
				defer func() { recover() }()
				handler.OnError(ctx, callErr, originalInputs, freshIctx)
			}()
		}
		return nil, newErr(ErrNodeRuntime, node.ID, "%v", callErr)
	}

	return addressOutputs(node.Outputs, result), nil
}

// invocationContext builds a fresh InvocationContext bound to runID/node,
// used once per retry attempt and again, independently, for on_error.
func (s *Scheduler) invocationContext(runID string, node *graphdef.NodeSpec, cancel *component.CancelToken, deadline time.Time, loop *component.LoopContext) *component.InvocationContext {
	return &component.InvocationContext{
		NodeID: node.ID, GraphName: s.graphName, Config: node.Config,
		Emit:   func(event string, fields map[string]interface{}) { s.emit(runID, event, fields) },
		Cancel: cancel, Deadline: deadline, Loop: loop, Registry: s.lookup,
	}
}

// emitKindCallEvent emits the kind-specific llm.call/tool.call event once
// the attempt's result is known, carrying the fields spec §6 documents for
// each (provider_id/model/tokens_in/tokens_out for llm, tool_id/
// required_permissions for tool; inputs/outputs on both).
func (s *Scheduler) emitKindCallEvent(runID string, node *graphdef.NodeSpec, inputs, result map[string]interface{}) {
	switch node.Kind {
	case "llm":
		tokensIn, tokensOut, _ := tokenCounts(result)
		s.emit(runID, bus.EventLLMCall, map[string]interface{}{
			"provider_id": node.ProviderID, "model": s.providerModel(node.ProviderID),
			"tokens_in": tokensIn, "tokens_out": tokensOut,
			"inputs": inputs, "outputs": result,
		})
	case "tool":
		s.emit(runID, bus.EventToolCall, map[string]interface{}{
			"tool_id": node.ToolID, "required_permissions": node.Permissions,
			"inputs": inputs, "outputs": result,
		})
	}
}

// providerModel looks up the configured model name for an llm node's bound
// provider, for attaching to the llm.call event. Best-effort: an unresolved
// or missing lookup yields an empty string rather than an error.
func (s *Scheduler) providerModel(providerID string) string {
	if s.lookup == nil || providerID == "" {
		return ""
	}
	cfg, ok := s.lookup.Provider(providerID)
	if !ok {
		return ""
	}
	model, _ := cfg["model"].(string)
	return model
}

// chargeLLMCost enforces the per-run token budget on the llm.call emission
// path (spec §4.8/§4.10), not after the fact on node completion, so a
// budget breach fails the attempt (and is subject to the same retry/
// on_error handling as any other call error).
func (s *Scheduler) chargeLLMCost(runID string, node *graphdef.NodeSpec, result map[string]interface{}) error {
	if node.Kind != "llm" {
		return nil
	}
	tokensIn, tokensOut, ok := tokenCounts(result)
	if !ok {
		return nil
	}
	return s.bus.ChargeCost(runID, tokensIn, tokensOut)
}

// tokenCounts extracts tokens_in/tokens_out from a call result's
// well-known fields, if present, for cost-limiter charging at llm.call
// emission (spec §4.8).
func tokenCounts(result map[string]interface{}) (int, int, bool) {
	in, okIn := toInt(result["tokens_in"])
	out, okOut := toInt(result["tokens_out"])
	if !okIn && !okOut {
		return 0, 0, false
	}
	return in, out, true
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// emit is a small wrapper that swallows bus errors: event delivery failures
// are captured in the bus's own fallback buffer, not treated as run
// failures.
func (s *Scheduler) emit(runID, event string, fields map[string]interface{}) {
	_, _ = s.bus.Emit(runID, event, fields)
}
