// Package engine wires the document/registry/graphdef/policy/scheduler
// packages into the one compile-then-run pipeline both cmd/flowgraph and
// httpapi need, so neither has to re-derive the other's wiring order.
package engine

import (
	"fmt"

	"github.com/flowforge/flowgraph/bus"
	"github.com/flowforge/flowgraph/graphdef"
	"github.com/flowforge/flowgraph/ir"
	"github.com/flowforge/flowgraph/policy"
	"github.com/flowforge/flowgraph/providers/history"
	"github.com/flowforge/flowgraph/providers/llm"
	"github.com/flowforge/flowgraph/providers/tool"
	"github.com/flowforge/flowgraph/registry"
	"github.com/flowforge/flowgraph/scheduler"
)

// Compiled is a fully resolved document, ready to be run any number of
// times (each run gets its own run id and bus sequence, per
// scheduler.Scheduler's contract). Call Close when done with it to tear
// down resource-holding components exactly once.
type Compiled struct {
	Name      string
	Def       *graphdef.GraphDefinition
	Registry  *registry.Registry
	Retry     *policy.RetryConfig
	RateLimit *policy.Manager
	Gate      *policy.PermissionGate
	Cost      *policy.CostLimiter
	Masker    *policy.Masker
	Warnings  []ir.Warning
}

// Compile parses, validates, normalizes, and resolves a YAML document,
// wiring the built-in llm/tool/history provider factories ahead of
// resolution. name labels the compiled graph in emitted events (typically
// the source file's base name).
func Compile(name string, data []byte) (*Compiled, error) {
	doc, err := ir.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("engine: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("engine: validate: %w", err)
	}

	normalized, warnings, err := ir.Normalize(doc)
	if err != nil {
		return nil, fmt.Errorf("engine: normalize: %w", err)
	}

	reg := registry.New(normalized)
	history.Register(reg)
	llm.Register(reg)
	tool.Register(reg)
	if err := reg.Resolve(); err != nil {
		return nil, fmt.Errorf("engine: resolve: %w", err)
	}

	def, err := graphdef.Build(normalized, reg)
	if err != nil {
		return nil, fmt.Errorf("engine: build graph: %w", err)
	}

	retry, err := policy.RetryConfigFromConfig(normalized.Policies.Retry)
	if err != nil {
		return nil, fmt.Errorf("engine: retry policy: %w", err)
	}
	rateLimit, err := policy.NewManager(normalized.Policies.RateLimits)
	if err != nil {
		return nil, fmt.Errorf("engine: rate limit policy: %w", err)
	}
	gate, err := policy.NewPermissionGate(normalized.Policies.Permissions)
	if err != nil {
		return nil, fmt.Errorf("engine: permission policy: %w", err)
	}
	cost, err := policy.NewCostLimiter(normalized.Policies.Cost)
	if err != nil {
		return nil, fmt.Errorf("engine: cost policy: %w", err)
	}
	masker, err := policy.NewMasker(normalized.Policies.Masking)
	if err != nil {
		return nil, fmt.Errorf("engine: masking policy: %w", err)
	}

	return &Compiled{
		Name:      name,
		Def:       def,
		Registry:  reg,
		Retry:     retry,
		RateLimit: rateLimit,
		Gate:      gate,
		Cost:      cost,
		Masker:    masker,
		Warnings:  warnings,
	}, nil
}

// Scheduler builds a Bus fanning out to sinks and a Scheduler bound to it.
// Sinks are shared across every run the returned Scheduler executes;
// per-run consumers (such as an SSE subscriber) should use a sink that
// demultiplexes by Event.RunID rather than calling Scheduler once per
// caller. The caller owns the result and should call its Close when the
// document will no longer be run, to release resource-holding components
// exactly once.
func (c *Compiled) Scheduler(sinks ...bus.Sink) *scheduler.Scheduler {
	b := bus.New(sinks, c.Masker, c.Cost, c.Gate)
	return scheduler.New(c.Def, b, c.Retry, c.RateLimit, c.Name, c.Registry.Closers(), c.Registry)
}

// Close tears down every resource-holding component this document
// resolved. Only needed by callers that never build a Scheduler (e.g.
// "validate", which compiles a document purely to report warnings); once
// a Scheduler exists, prefer its own Close, which also reports teardown
// failures as error.raised events.
func (c *Compiled) Close() {
	for _, closer := range c.Registry.Closers() {
		_ = closer.Close()
	}
}
