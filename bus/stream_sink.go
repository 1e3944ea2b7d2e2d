package bus

import "sync"

// StreamSink demultiplexes the event stream by run id for live subscribers
// (httpapi's SSE endpoint), the same per-event dispatch shape MetricsSink
// and OTelSink use, fanning out to per-run channels instead of a metrics
// registry or tracer.
type StreamSink struct {
	mu   sync.Mutex
	subs map[string]map[int]chan Event
	next int
}

// NewStreamSink builds an empty StreamSink ready for Subscribe calls.
func NewStreamSink() *StreamSink {
	return &StreamSink{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers a buffered channel for every future event carrying
// runID, returning it alongside an unsubscribe function the caller must
// call exactly once when it stops reading (typically on request
// disconnect). The channel is closed by unsubscribe, never by Emit.
func (s *StreamSink) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, 64)

	s.mu.Lock()
	if s.subs[runID] == nil {
		s.subs[runID] = make(map[int]chan Event)
	}
	id := s.next
	s.next++
	s.subs[runID][id] = ch
	s.mu.Unlock()

	unsubscribe := func() {
		s.mu.Lock()
		if byID, ok := s.subs[runID]; ok {
			delete(byID, id)
			if len(byID) == 0 {
				delete(s.subs, runID)
			}
		}
		s.mu.Unlock()
		close(ch)
	}
	return ch, unsubscribe
}

// Emit delivers e to every live subscriber of e.RunID. A subscriber whose
// buffer is full is skipped rather than blocked, the same isolation
// principle Bus.Emit applies across sinks: one slow reader must not stall
// the run.
func (s *StreamSink) Emit(e Event) error {
	s.mu.Lock()
	subs := s.subs[e.RunID]
	chans := make([]chan Event, 0, len(subs))
	for _, ch := range subs {
		chans = append(chans, ch)
	}
	s.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- e:
		default:
		}
	}
	return nil
}
