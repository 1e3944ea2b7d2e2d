package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/flowgraph/bus"
	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/graphdef"
	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/policy"
	"github.com/flowforge/flowgraph/scheduler"
)

type fnCallable struct {
	fn func(ctx context.Context, state component.StateView, inputs map[string]interface{}) (map[string]interface{}, error)
}

func (f fnCallable) Call(ctx context.Context, state component.StateView, inputs map[string]interface{}) (map[string]interface{}, error) {
	return f.fn(ctx, state, inputs)
}

func echoCallable(extra map[string]interface{}) fnCallable {
	return fnCallable{fn: func(_ context.Context, _ component.StateView, _ map[string]interface{}) (map[string]interface{}, error) {
		out := make(map[string]interface{}, len(extra))
		for k, v := range extra {
			out[k] = v
		}
		return out, nil
	}}
}

// blockingCallable waits on proceed before returning extra, letting a test
// hold a run open until it has finished subscribing to its event stream.
func blockingCallable(proceed <-chan struct{}, extra map[string]interface{}) fnCallable {
	return fnCallable{fn: func(ctx context.Context, _ component.StateView, _ map[string]interface{}) (map[string]interface{}, error) {
		select {
		case <-proceed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return extra, nil
	}}
}

func noRetry() *policy.RetryConfig {
	return &policy.RetryConfig{Default: &policy.RetryPolicy{MaxAttempts: 1, Strategy: policy.StrategyFixed}}
}

func serverOverEntry(entry graphdef.NodeSpec) *Server {
	entry.ID = "a"
	def := &graphdef.GraphDefinition{
		EntryID: "a",
		Nodes:   map[string]*graphdef.NodeSpec{"a": &entry},
		Outputs: []ir.Output{{Key: "final", NodeID: "a", Output: "$.greeting"}},
	}
	stream := bus.NewStreamSink()
	b := bus.New([]bus.Sink{stream}, nil, nil, nil)
	sched := scheduler.New(def, b, noRetry(), nil, "test-graph", nil, nil)
	return NewServer(sched, stream, zerolog.New(io.Discard))
}

func testServer() *Server {
	return serverOverEntry(graphdef.NodeSpec{Kind: ir.KindComponent, Callable: echoCallable(map[string]interface{}{"greeting": "hi"})})
}

func TestHandleHealthReturnsOK(t *testing.T) {
	srv := testServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleSubmitRunGeneratesRunIDWhenOmitted(t *testing.T) {
	srv := testServer()
	body := bytes.NewBufferString(`{"inputs":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp submitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.RunID)
	require.Equal(t, "accepted", resp.Status)
}

func TestHandleSubmitRunHonorsCallerSuppliedRunID(t *testing.T) {
	srv := testServer()
	body := bytes.NewBufferString(`{"run_id":"run-fixed","inputs":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var resp submitRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "run-fixed", resp.RunID)
}

func TestHandleSubmitRunRejectsMalformedBody(t *testing.T) {
	srv := testServer()
	body := bytes.NewBufferString(`{"inputs": not-json`)
	req := httptest.NewRequest(http.MethodPost, "/runs", body)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestHandleRunEventsStreamsResultThenCloses exercises the full SSE path
// over a real network connection: the entry node blocks until this test
// has subscribed (via a successful GET that has received headers), at
// which point it releases the run and expects the run.result event to
// arrive before the stream closes.
func TestHandleRunEventsStreamsResultThenCloses(t *testing.T) {
	proceed := make(chan struct{})
	srv := serverOverEntry(graphdef.NodeSpec{Kind: ir.KindComponent, Callable: blockingCallable(proceed, map[string]interface{}{"greeting": "hi"})})

	httpSrv := httptest.NewServer(srv.Router())
	defer httpSrv.Close()

	runID := "run-sse"
	submitResp, err := http.Post(httpSrv.URL+"/runs", "application/json",
		bytes.NewBufferString(`{"run_id":"`+runID+`","inputs":{}}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, submitResp.StatusCode)
	require.NoError(t, submitResp.Body.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/runs/"+runID+"/events", nil)
	require.NoError(t, err)

	eventsResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer eventsResp.Body.Close()
	require.Equal(t, http.StatusOK, eventsResp.StatusCode)

	// Headers have been received, so the server-side Subscribe call (which
	// happens before headers are written) is guaranteed to have run.
	close(proceed)

	scanner := bufio.NewScanner(eventsResp.Body)
	sawResult := false
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), "run.result") {
			sawResult = true
			break
		}
	}
	require.True(t, sawResult, "expected a run.result event in the SSE stream")
}

func TestWriteSSEEventFormatsDataLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeSSEEvent(&buf, bus.Event{Event: "node.start", RunID: "r1", Sequence: 1}))

	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	require.Equal(t, "event: node.start", scanner.Text())
	require.True(t, scanner.Scan())
	require.True(t, strings.HasPrefix(scanner.Text(), "data: {"))
}
