package scheduler

import (
	"strconv"
	"strings"
	"sync"

	"github.com/flowforge/flowgraph/component"
)

// runState accumulates every node's output so later nodes can address into
// it. It is the backing store behind component.StateView. Parallel nodes
// may nest, so writes and reads both happen from concurrently-running
// goroutines: every access goes through mu.
type runState struct {
	mu          sync.RWMutex
	graphInputs map[string]interface{}
	nodes       map[string]map[string]interface{}
}

func newRunState(graphInputs map[string]interface{}) *runState {
	return &runState{graphInputs: graphInputs, nodes: make(map[string]map[string]interface{})}
}

func (s *runState) record(nodeID string, out map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID] = out
}

func (s *runState) nodeOutput(nodeID string) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodes[nodeID]
}

// view returns a point-in-time snapshot of recorded node outputs, safe to
// hand to a component.Callable even while other branches keep recording
// concurrently.
func (s *runState) view() component.StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snapshot := make(map[string]map[string]interface{}, len(s.nodes))
	for k, v := range s.nodes {
		snapshot[k] = v
	}
	return component.StateView{GraphInputs: s.graphInputs, Nodes: snapshot}
}

// resolveInputs evaluates a node's declared `inputs` map, one expression per
// key, against the accumulated run state and the current loop context (set
// only while iterating a map node's collection).
func resolveInputs(exprs map[string]string, state *runState, loop *component.LoopContext) map[string]interface{} {
	out := make(map[string]interface{}, len(exprs))
	for key, expr := range exprs {
		out[key] = resolveExpr(expr, state, loop)
	}
	return out
}

// resolveExpr evaluates one input expression. Recognized forms:
//
//	graph.inputs.<key>        -> the named top-level run input
//	node.<id>.<field>         -> field of an already-executed node's output
//	map.item                  -> the current map iteration's item
//	map.item.<path>           -> a path into the current iteration's item
//	map.index                 -> the current map iteration's index
//	const:<literal>           -> the literal string verbatim
//
// Anything else passes through unchanged, letting graph authors supply
// literal values directly.
func resolveExpr(expr string, state *runState, loop *component.LoopContext) interface{} {
	switch {
	case strings.HasPrefix(expr, "const:"):
		return strings.TrimPrefix(expr, "const:")
	case expr == "map.index":
		if loop == nil {
			return nil
		}
		return loop.Index
	case expr == "map.item":
		if loop == nil {
			return nil
		}
		return loop.Item
	case strings.HasPrefix(expr, "map.item."):
		if loop == nil {
			return nil
		}
		return addressPath(loop.Item, strings.TrimPrefix(expr, "map.item."))
	case strings.HasPrefix(expr, "graph.inputs."):
		key := strings.TrimPrefix(expr, "graph.inputs.")
		return addressPath(state.graphInputs, key)
	case strings.HasPrefix(expr, "node."):
		rest := strings.TrimPrefix(expr, "node.")
		dot := strings.IndexByte(rest, '.')
		if dot < 0 {
			return nil
		}
		nodeID, field := rest[:dot], rest[dot+1:]
		return addressPath(state.nodeOutput(nodeID), field)
	default:
		return expr
	}
}

// addressPath walks a dotted, bracket-indexed path such as "a.b[0].c" over a
// loosely typed tree (maps, slices, or a single scalar root). A path segment
// that does not resolve — a missing key, an out-of-range index, or
// descending into a scalar — yields nil rather than an error (spec §4.4.2:
// "missing path is absent, not failure").
func addressPath(root interface{}, path string) interface{} {
	if path == "" {
		return root
	}
	tokens := tokenizePath(path)
	cur := root
	for _, tok := range tokens {
		if idx, ok := tok.index(); ok {
			seq, ok := toSlice(cur)
			if !ok || idx < 0 || idx >= len(seq) {
				return nil
			}
			cur = seq[idx]
			continue
		}
		m, ok := toMap(cur)
		if !ok {
			return nil
		}
		v, present := m[tok.key]
		if !present {
			return nil
		}
		cur = v
	}
	return cur
}

// pathToken is either a map-key access or a slice-index access.
type pathToken struct {
	key string
	idx int
	isI bool
}

func (t pathToken) index() (int, bool) { return t.idx, t.isI }

// tokenizePath splits "a.b[0].c" into [{key:a} {key:b} {idx:0} {key:c}].
func tokenizePath(path string) []pathToken {
	var tokens []pathToken
	for _, segment := range strings.Split(path, ".") {
		for segment != "" {
			open := strings.IndexByte(segment, '[')
			if open < 0 {
				tokens = append(tokens, pathToken{key: segment})
				break
			}
			if open > 0 {
				tokens = append(tokens, pathToken{key: segment[:open]})
			}
			close := strings.IndexByte(segment, ']')
			if close < 0 {
				tokens = append(tokens, pathToken{key: segment})
				break
			}
			idx, err := strconv.Atoi(segment[open+1 : close])
			if err != nil {
				tokens = append(tokens, pathToken{key: segment[open+1 : close]})
			} else {
				tokens = append(tokens, pathToken{idx: idx, isI: true})
			}
			segment = segment[close+1:]
		}
	}
	return tokens
}

func toMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func toSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// addressOutputs evaluates a node's declared `outputs` map, one `$`-rooted
// path expression per key, against that node's raw call result.
func addressOutputs(exprs map[string]string, result map[string]interface{}) map[string]interface{} {
	if len(exprs) == 0 {
		return result
	}
	out := make(map[string]interface{}, len(exprs))
	for key, expr := range exprs {
		path := strings.TrimPrefix(expr, "$")
		path = strings.TrimPrefix(path, ".")
		out[key] = addressPath(map[string]interface{}(result), path)
	}
	return out
}
