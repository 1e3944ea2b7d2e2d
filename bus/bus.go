package bus

import (
	"fmt"
	"sync"
	"time"

	"github.com/flowforge/flowgraph/policy"
)

// maxFallbackEntries bounds the fallback buffer so a permanently broken
// sink cannot leak memory across a long-lived bus.
const maxFallbackEntries = 1000

// FailedDelivery records one sink's failure to accept an event, captured
// instead of propagated (spec §4.10 "capture per-sink export errors into a
// fallback buffer rather than propagating").
type FailedDelivery struct {
	Event   Event
	SinkIdx int
	Err     error
}

// Bus is the fan-out gateway through which all runtime observability
// flows. A single Bus may be shared across concurrent runs; its sequence
// counters, cost accumulator, and masking memory are all keyed by run_id.
type Bus struct {
	sinks  []Sink
	masker *policy.Masker
	cost   *policy.CostLimiter
	gate   *policy.PermissionGate

	mu       sync.Mutex
	seq      map[string]int
	fallback []FailedDelivery

	now func() time.Time
}

// New builds a Bus over the given sinks (delivered to in registration
// order) and policy-plane collaborators. Any of masker/cost/gate may be
// nil, in which case that enforcement step is skipped.
func New(sinks []Sink, masker *policy.Masker, cost *policy.CostLimiter, gate *policy.PermissionGate) *Bus {
	return &Bus{
		sinks:  sinks,
		masker: masker,
		cost:   cost,
		gate:   gate,
		seq:    make(map[string]int),
		now:    time.Now,
	}
}

// Emit stamps payload with run_id, the next sequence number for that run,
// and the current time, masks it, then delivers the same masked payload
// reference to every sink in registration order. A payload missing run_id
// is a programmer error and panics, per spec §4.10's contract note.
func (b *Bus) Emit(runID, eventName string, fields map[string]interface{}) (Event, error) {
	if runID == "" {
		panic("bus: Emit called with empty run_id")
	}

	b.mu.Lock()
	seq := b.seq[runID]
	b.seq[runID] = seq + 1
	b.mu.Unlock()

	masked := fields
	if b.masker != nil && fields != nil {
		m, err := b.masker.Mask(runID, fields)
		if err != nil {
			return Event{}, fmt.Errorf("bus: masking failed: %w", err)
		}
		masked = m
	}

	event := Event{Event: eventName, RunID: runID, Sequence: seq, TS: b.now(), Fields: masked}

	for i, sink := range b.sinks {
		if err := b.safeEmit(sink, event); err != nil {
			b.recordFailure(event, i, err)
		}
	}

	return event, nil
}

func (b *Bus) safeEmit(sink Sink, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return sink.Emit(event)
}

func (b *Bus) recordFailure(event Event, sinkIdx int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = append(b.fallback, FailedDelivery{Event: event, SinkIdx: sinkIdx, Err: err})
	if len(b.fallback) > maxFallbackEntries {
		b.fallback = b.fallback[len(b.fallback)-maxFallbackEntries:]
	}
}

// Fallback returns a snapshot of every delivery failure captured so far.
func (b *Bus) Fallback() []FailedDelivery {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]FailedDelivery, len(b.fallback))
	copy(out, b.fallback)
	return out
}

// CheckToolPermission enforces the permission gate ahead of a tool
// invocation (spec scenario 6: denial happens "before any tool
// invocation"). A nil gate allows everything.
func (b *Bus) CheckToolPermission(componentID string, required []string) ([]string, error) {
	if b.gate == nil {
		return nil, nil
	}
	return b.gate.Check(componentID, required)
}

// ChargeCost enforces the cost limiter at llm.call time (spec §4.7). A nil
// limiter never trips.
func (b *Bus) ChargeCost(runID string, tokensIn, tokensOut int) error {
	if b.cost == nil {
		return nil
	}
	return b.cost.Charge(runID, tokensIn, tokensOut)
}

// Forget releases a run's sequence counter and policy-plane accumulators
// once the run reaches teardown.
func (b *Bus) Forget(runID string) {
	b.mu.Lock()
	delete(b.seq, runID)
	b.mu.Unlock()
	if b.cost != nil {
		b.cost.Forget(runID)
	}
	if b.masker != nil {
		b.masker.Forget(runID)
	}
}
