package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/flowforge/flowgraph/bus"
)

// submitRunRequest is the POST /runs body: a run id (generated if
// omitted), the graph's top-level inputs, and an optional wall-clock
// budget overriding the server's default run budget.
type submitRunRequest struct {
	RunID          string                 `json:"run_id"`
	Inputs         map[string]interface{} `json:"inputs"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
}

type submitRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSubmitRun accepts a run's inputs, starts execution on a detached
// context so the run outlives this request, and returns immediately with
// the run id a caller then follows via GET /runs/{id}/events. Execution
// is asynchronous because a caller may want to start watching the SSE
// stream only after receiving the run id, and because a run may outlive
// any single HTTP request's lifetime.
func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	var req submitRunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid request body: %v", err)})
			return
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	var deadline time.Time
	budget := defaultRunBudget
	if req.TimeoutSeconds > 0 {
		budget = time.Duration(req.TimeoutSeconds) * time.Second
	}
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}

	go s.runAndPublishResult(runID, req.Inputs, deadline)

	writeJSON(w, http.StatusAccepted, submitRunResponse{RunID: runID, Status: "accepted"})
}

// runAndPublishResult runs the graph to completion on a background
// context (so it is not cancelled by the submitting request returning),
// then publishes a synthetic EventRunResult so an SSE subscriber sees the
// final outputs without polling a separate endpoint.
func (s *Server) runAndPublishResult(runID string, inputs map[string]interface{}, deadline time.Time) {
	ctx := context.Background()
	outputs, err := s.sched.Run(ctx, runID, inputs, deadline)

	fields := map[string]interface{}{"outputs": outputs}
	if err != nil {
		fields["error"] = err.Error()
	}
	_ = s.stream.Emit(bus.Event{Event: EventRunResult, RunID: runID, TS: time.Now(), Fields: fields})
}

// handleRunEvents streams runID's events as Server-Sent Events until the
// client disconnects or a run.result event closes out the run. SSE
// framing (Content-Type, the "data:" line format, blank-line event
// terminator) follows the shape other streaming graph-execution HTTP
// surfaces in the retrieval pack use (see DESIGN.md); the actual
// flush-per-event loop is necessarily stdlib, since SSE emission is an
// http.Flusher concern no third-party library in the pack wraps.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if runID == "" {
		http.Error(w, `{"error":"run id required"}`, http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	// Subscribe before writing headers: a client that has received the
	// response headers must already be registered to receive every event
	// from this point forward, with no gap where an event could be
	// emitted and missed.
	events, unsubscribe := s.stream.Subscribe(runID)
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case e, open := <-events:
			if !open {
				return
			}
			if err := writeSSEEvent(w, e); err != nil {
				s.logger.Warn().Err(err).Str("run_id", runID).Msg("sse write failed")
				return
			}
			flusher.Flush()
			if e.Event == EventRunResult {
				return
			}
		}
	}
}

func writeSSEEvent(w io.Writer, e bus.Event) error {
	payload, err := json.Marshal(map[string]interface{}{
		"event":    e.Event,
		"run_id":   e.RunID,
		"sequence": e.Sequence,
		"ts":       e.TS,
		"fields":   e.Fields,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Event, payload)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
