package bus

import (
	"sort"
	"sync"
)

// nodeTimeline is one node's reconstructed lifecycle: when it started, how
// it finished, and every retry it took along the way.
type nodeTimeline struct {
	NodeID     string                   `json:"node_id"`
	Kind       string                   `json:"kind,omitempty"`
	StartedAt  interface{}              `json:"started_at,omitempty"`
	DurationMS interface{}              `json:"duration_ms,omitempty"`
	Status     string                   `json:"status,omitempty"`
	Retries    []map[string]interface{} `json:"retries"`
}

// ExecutionTreeSink reconstructs a structured per-run timeline from the
// event stream: a graph-level summary plus one nodeTimeline per node,
// ordered by start time. It is scoped to the first run_id it observes;
// events from any other run are ignored, mirroring this codebase's one-
// sink-per-run convention for in-memory exporters.
type ExecutionTreeSink struct {
	mu    sync.Mutex
	runID string
	graph map[string]interface{}
	nodes map[string]*nodeTimeline
}

// NewExecutionTreeSink builds an empty tree, ready to absorb one run's
// events.
func NewExecutionTreeSink() *ExecutionTreeSink {
	return &ExecutionTreeSink{graph: make(map[string]interface{}), nodes: make(map[string]*nodeTimeline)}
}

func (s *ExecutionTreeSink) Emit(e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		s.runID = e.RunID
	} else if e.RunID != "" && e.RunID != s.runID {
		return nil
	}

	switch e.Event {
	case EventGraphStart:
		s.graph["run_id"] = e.RunID
		s.graph["graph_name"] = e.Fields["graph"]
		s.graph["entrypoint"] = e.Fields["entry"]
		s.graph["start_ts"] = e.TS
	case EventGraphFinish:
		s.graph["finish_ts"] = e.TS
		s.graph["status"] = e.Fields["status"]
		s.graph["outputs"] = e.Fields["outputs"]
	case EventNodeStart:
		node := s.nodeFor(e.Fields["node_id"])
		node.Kind, _ = e.Fields["kind"].(string)
		node.StartedAt = e.TS
	case EventNodeFinish:
		node := s.nodeFor(e.Fields["node_id"])
		if kind, ok := e.Fields["kind"].(string); ok {
			node.Kind = kind
		}
		node.DurationMS = e.Fields["duration_ms"]
		node.Status, _ = e.Fields["status"].(string)
	case EventRetryAttempt:
		node := s.nodeFor(e.Fields["node_id"])
		node.Retries = append(node.Retries, map[string]interface{}{
			"attempt": e.Fields["attempt"],
			"delay":   e.Fields["delay"],
			"ts":      e.TS,
			"error":   e.Fields["error"],
		})
	case EventTimeout, EventCancelled:
		warnings, _ := s.graph["warnings"].([]map[string]interface{})
		s.graph["warnings"] = append(warnings, map[string]interface{}{"event": e.Event, "ts": e.TS})
	}
	return nil
}

func (s *ExecutionTreeSink) nodeFor(rawID interface{}) *nodeTimeline {
	id, _ := rawID.(string)
	node, ok := s.nodes[id]
	if !ok {
		node = &nodeTimeline{NodeID: id, Retries: []map[string]interface{}{}}
		s.nodes[id] = node
	}
	return node
}

// Build returns the tree accumulated so far: a graph-level summary and its
// nodes sorted by start time. Safe to call mid-run for a partial snapshot,
// and repeatedly once the run has finished.
func (s *ExecutionTreeSink) Build() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]*nodeTimeline, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return startOrder(nodes[i].StartedAt) < startOrder(nodes[j].StartedAt)
	})

	graph := make(map[string]interface{}, len(s.graph))
	for k, v := range s.graph {
		graph[k] = v
	}
	return map[string]interface{}{"graph": graph, "nodes": nodes}
}

// startOrder gives node.start's recorded timestamp a stable sort key; a
// node never started (should not happen on the executed path) sorts first.
func startOrder(ts interface{}) int64 {
	t, ok := ts.(interface{ UnixNano() int64 })
	if !ok {
		return 0
	}
	return t.UnixNano()
}
