// Package httpapi exposes a compiled document as an HTTP run surface:
// submit a run's inputs and watch its event stream over Server-Sent
// Events, the transport spec §4.10's event bus is agnostic to. Routing
// and CORS follow go-chi/chi and go-chi/cors's documented middleware
// shape (see DESIGN.md for the retrieval pack's coverage of this pairing).
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/flowforge/flowgraph/bus"
	"github.com/flowforge/flowgraph/internal/engine"
	"github.com/flowforge/flowgraph/scheduler"
)

// EventRunResult is a synthetic event, not part of the canonical bus
// vocabulary, appended to a run's SSE stream once Scheduler.Run returns:
// it carries the run's final graph-level outputs (or its error), since
// graph.finish itself only reports a status string (spec §6 event
// schema).
const EventRunResult = "run.result"

// defaultRunBudget bounds a run with no caller-supplied timeout, so a
// stuck component cannot hold server resources forever.
const defaultRunBudget = 5 * time.Minute

// Server serves the run API for a single compiled document. Its
// Scheduler and Bus are built once and shared across every run: the
// bus's StreamSink demultiplexes concurrent runs by run id for SSE
// subscribers.
type Server struct {
	sched  *scheduler.Scheduler
	stream *bus.StreamSink
	logger zerolog.Logger
}

// NewServer builds a run API directly over a scheduler and the StreamSink
// feeding its SSE subscribers (the StreamSink must already be one of the
// sinks that scheduler's Bus was built with). This is the low-level
// constructor tests exercise against a hand-built scheduler; cmd/flowgraph
// normally goes through NewServerFromCompiled instead.
func NewServer(sched *scheduler.Scheduler, stream *bus.StreamSink, logger zerolog.Logger) *Server {
	return &Server{sched: sched, stream: stream, logger: logger}
}

// NewServerFromCompiled builds a run API over an already-compiled
// document, wiring a fresh StreamSink into the scheduler's bus alongside
// extraSinks (e.g. bus.NewConsoleSink for server-side logging, or
// bus.NewFileSink for a durable audit log).
func NewServerFromCompiled(compiled *engine.Compiled, logger zerolog.Logger, extraSinks ...bus.Sink) *Server {
	stream := bus.NewStreamSink()
	sinks := append([]bus.Sink{stream}, extraSinks...)
	sched := compiled.Scheduler(sinks...)
	return NewServer(sched, stream, logger)
}

// Router builds the chi router: request id/panic-recovery middleware, CORS
// preflight handling, and the run endpoints.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/runs", s.handleSubmitRun)
	r.Get("/runs/{id}/events", s.handleRunEvents)
	return r
}

// Close tears down the underlying scheduler's resource-holding
// components. Safe to call once the server is no longer accepting
// requests.
func (s *Server) Close() {
	s.sched.Close()
}
