package scheduler

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/graphdef"
)

// runBranch executes a single node as a self-contained unit, returning its
// addressed result without enqueueing any further successors. It is the
// shared body map and parallel nodes use to run their bound
// component/router/nested-map/nested-parallel node.
func (s *Scheduler) runBranch(ctx context.Context, runID string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) (map[string]interface{}, error) {
	switch node.Kind {
	case "map":
		return s.runMap(ctx, runID, node, state, cancel, deadline)
	case "parallel":
		return s.runParallel(ctx, runID, node, state, cancel, deadline)
	case "router":
		if node.Callable != nil {
			result, err := s.invoke(ctx, runID, node, state, nil, cancel, deadline)
			if err != nil {
				return nil, err
			}
			state.record(node.ID, result)
		}
		next, err := s.runRouter(runID, node, state)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"next": next}, nil
	default:
		return s.invoke(ctx, runID, node, state, nil, cancel, deadline)
	}
}

// runMap iterates a map node's bound component sequentially over a
// resolved collection, exposing map.item/map.index to input resolution on
// each iteration (spec §4.4.5). No node.start/node.finish events fire per
// iteration; only the map node itself is bracketed by them.
func (s *Scheduler) runMap(ctx context.Context, runID string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) (map[string]interface{}, error) {
	collExpr := stringCfg(node.Config, "collection", "")
	coll := resolveExpr(collExpr, state, nil)
	items, ok := toSlice(coll)
	if !ok {
		return nil, newErr(ErrMapOverNotArray, node.ID, "collection %q did not resolve to an array", collExpr)
	}

	failureMode := stringCfg(node.Config, "failure_mode", "fail_fast")
	resultKey := stringCfg(node.Config, "result_key", "results")

	var results []interface{}
	var errs []interface{}
	for idx, item := range items {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-cancel.Done():
			return nil, newErr(ErrRunCancelled, node.ID, "run cancelled during map iteration")
		default:
		}

		loop := &component.LoopContext{Item: item, Index: idx}
		out, err := s.invoke(ctx, runID, node, state, loop, cancel, deadline)
		if err != nil {
			switch failureMode {
			case "collect_errors":
				errs = append(errs, map[string]interface{}{"index": idx, "error": err.Error()})
				continue
			case "skip_failed":
				continue
			default: // fail_fast
				return nil, err
			}
		}
		results = append(results, out)
	}

	out := map[string]interface{}{resultKey: results}
	if len(errs) > 0 {
		out["errors"] = errs
	}
	return out, nil
}

// runParallel fans a node out across its configured branch node ids and
// merges their results per merge_policy (spec §4.4.6).
func (s *Scheduler) runParallel(ctx context.Context, runID string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) (map[string]interface{}, error) {
	branchIDs := stringSliceCfg(node.Config, "branches")
	if len(branchIDs) == 0 {
		return nil, newErr(ErrParallelEmpty, node.ID, "parallel node has no branches configured")
	}
	for _, id := range branchIDs {
		if _, ok := s.def.Nodes[id]; !ok {
			return nil, newErr(ErrEdgeEndpointInvalid, node.ID, "branch %q does not name a known node", id)
		}
	}

	mergePolicy := stringCfg(node.Config, "merge_policy", "overwrite")
	mode := stringCfg(node.Config, "mode", "all")

	var collected map[string]map[string]interface{}
	if mode == "first_success" || mode == "any" {
		var err error
		collected, err = s.raceBranches(ctx, runID, branchIDs, node, state, cancel, deadline)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		collected, err = s.runAllBranches(ctx, runID, branchIDs, node, state, cancel, deadline)
		if err != nil {
			return nil, err
		}
	}

	ids := make([]string, 0, len(collected))
	for id := range collected {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	merged := make(map[string]interface{})
	switch mergePolicy {
	case "namespace":
		for _, id := range ids {
			merged[id] = collected[id]
		}
	case "error":
		for _, id := range ids {
			for k, v := range collected[id] {
				if existing, ok := merged[k]; ok && !reflect.DeepEqual(existing, v) {
					return nil, newErr(ErrNodeRuntime, node.ID, "parallel merge conflict on output key %q", k)
				}
				merged[k] = v
			}
		}
	default: // overwrite
		for _, id := range ids {
			for k, v := range collected[id] {
				merged[k] = v
			}
		}
	}

	return merged, nil
}

// branchOutcome is one branch goroutine's finished result, identified by
// the branch node id it ran.
type branchOutcome struct {
	id     string
	result map[string]interface{}
	err    error
}

// runAllBranches runs every branch to completion concurrently; any failure
// propagates (mode=all, spec §4.4.6).
func (s *Scheduler) runAllBranches(ctx context.Context, runID string, branchIDs []string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) (map[string]map[string]interface{}, error) {
	outcomes := make(chan branchOutcome, len(branchIDs))
	var wg sync.WaitGroup
	for _, id := range branchIDs {
		wg.Add(1)
		go func(branchID string) {
			defer wg.Done()
			result, err := s.runBranch(ctx, runID, s.def.Nodes[branchID], state, cancel, deadline)
			outcomes <- branchOutcome{id: branchID, result: result, err: err}
		}(id)
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	collected := make(map[string]map[string]interface{})
	var firstErr error
	for o := range outcomes {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		state.record(o.id, o.result)
		collected[o.id] = o.result
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return collected, nil
}

// raceBranches starts every branch, awaits the first to complete (success
// or failure), cancels the remaining in-flight branches, and returns only
// the winner's outcome (mode=first_success/any, spec §4.4.6). The losing
// branches are cancelled via a race-scoped context derived from ctx,
// independent of the run's own cancel token, so they unblock even when the
// run as a whole is healthy.
func (s *Scheduler) raceBranches(ctx context.Context, runID string, branchIDs []string, node *graphdef.NodeSpec, state *runState, cancel *component.CancelToken, deadline time.Time) (map[string]map[string]interface{}, error) {
	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	outcomes := make(chan branchOutcome, len(branchIDs))
	for _, id := range branchIDs {
		go func(branchID string) {
			result, err := s.runBranch(raceCtx, runID, s.def.Nodes[branchID], state, cancel, deadline)
			select {
			case outcomes <- branchOutcome{id: branchID, result: result, err: err}:
			case <-raceCtx.Done():
			}
		}(id)
	}

	var winner branchOutcome
	select {
	case winner = <-outcomes:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-cancel.Done():
		return nil, newErr(ErrRunCancelled, node.ID, "run cancelled during parallel race")
	}
	raceCancel()

	if winner.err != nil {
		return nil, winner.err
	}
	state.record(winner.id, winner.result)
	return map[string]map[string]interface{}{winner.id: winner.result}, nil
}
