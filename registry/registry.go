package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/flowforge/flowgraph/component"
	"github.com/flowforge/flowgraph/ir"
)

// ProviderFactory builds a provider's runtime value: a plain key/value
// mapping, per spec §4.2's "provider factory must yield a key/value
// mapping."
type ProviderFactory func(desc ir.Provider) (map[string]interface{}, error)

// HistoryFactory builds a named conversation-history backend's runtime
// value from its normalized descriptor.
type HistoryFactory func(desc ir.HistoryDescriptor) (interface{}, error)

// ToolFactory builds a tool's runtime value, given the tool's resolved
// provider instance (nil if the tool declares none).
type ToolFactory func(desc ir.Tool, provider map[string]interface{}) (interface{}, error)

// ComponentFactory builds a component's runtime value, given its resolved
// provider and tool instances (either may be nil). The returned value must
// satisfy component.Callable; Resolve enforces this via the same
// three-parameter shape check spec §4.2 describes for dynamic languages.
type ComponentFactory func(desc ir.Component, provider map[string]interface{}, tool interface{}) (interface{}, error)

// ToolInstance pairs a tool's materialized value with the permissions it
// declares (empty if it implements no component.PermissionSource).
type ToolInstance struct {
	ID          string
	Value       interface{}
	Permissions []string
}

// Registry materializes and caches provider/tool/component runtime objects
// for a single normalized IR document. It is safe for concurrent read
// access once Resolve has returned; Resolve itself is not safe to call
// concurrently with itself.
type Registry struct {
	doc *ir.IR

	mu                  sync.RWMutex
	providerFactories   map[string]ProviderFactory
	toolFactories       map[string]ToolFactory
	componentFactories  map[string]ComponentFactory
	historyFactories    map[string]HistoryFactory

	providers  map[string]map[string]interface{}
	tools      map[string]ToolInstance
	components map[string]component.Callable
	histories  map[string]interface{}

	resolved bool
}

// New returns a Registry bound to a normalized IR document. Factories must
// be registered via RegisterProviderFactory/RegisterToolFactory/
// RegisterComponentFactory before Resolve is called.
func New(doc *ir.IR) *Registry {
	return &Registry{
		doc:                doc,
		providerFactories:  make(map[string]ProviderFactory),
		toolFactories:      make(map[string]ToolFactory),
		componentFactories: make(map[string]ComponentFactory),
		historyFactories:   make(map[string]HistoryFactory),
		providers:          make(map[string]map[string]interface{}),
		tools:              make(map[string]ToolInstance),
		components:         make(map[string]component.Callable),
		histories:          make(map[string]interface{}),
	}
}

// RegisterProviderFactory binds a provider `type` string to a factory.
func (r *Registry) RegisterProviderFactory(typ string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providerFactories[typ] = f
}

// RegisterToolFactory binds a tool `type` string to a factory.
func (r *Registry) RegisterToolFactory(typ string, f ToolFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolFactories[typ] = f
}

// RegisterComponentFactory binds a component `type` string to a factory.
func (r *Registry) RegisterComponentFactory(typ string, f ComponentFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.componentFactories[typ] = f
}

// RegisterHistoryFactory binds a history descriptor `type` string to a
// factory.
func (r *Registry) RegisterHistoryFactory(typ string, f HistoryFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historyFactories[typ] = f
}

// Resolve materializes every history backend, then every provider, then
// every tool, then every component declared in the bound IR, in that fixed
// order (spec §4.2: "providers first, then tools ... then components"),
// caching each by id. Calling Resolve again re-runs every factory and
// replaces the cached instances.
func (r *Registry) Resolve() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.doc.HistoryOrder {
		desc := r.doc.Histories[id]
		factory, ok := r.historyFactories[desc.Type]
		if !ok {
			return newErr(ErrNoHistoryFactory, fmt.Sprintf("$/histories/%s", id),
				"no history factory registered for type %q", desc.Type)
		}
		value, err := factory(desc)
		if err != nil {
			return newErr(ErrHistoryFactory, fmt.Sprintf("$/histories/%s", id),
				"history %q factory failed: %v", id, err)
		}
		r.histories[id] = value
	}

	for _, id := range r.doc.ProviderOrder {
		desc := r.doc.Providers[id]
		factory, ok := r.providerFactories[desc.Type]
		if !ok {
			return newErr(ErrNoProviderFactory, fmt.Sprintf("$/providers/%s", id),
				"no provider factory registered for type %q", desc.Type)
		}
		value, err := factory(desc)
		if err != nil {
			return newErr(ErrProviderFactory, fmt.Sprintf("$/providers/%s", id),
				"provider %q factory failed: %v", id, err)
		}
		if value == nil {
			value = map[string]interface{}{}
		}
		r.providers[id] = value
	}

	for _, id := range r.doc.ToolOrder {
		desc := r.doc.Tools[id]
		factory, ok := r.toolFactories[desc.Type]
		if !ok {
			return newErr(ErrNoToolFactory, fmt.Sprintf("$/tools/%s", id),
				"no tool factory registered for type %q", desc.Type)
		}
		var providerInstance map[string]interface{}
		if desc.ProviderID != "" {
			providerInstance = r.providers[desc.ProviderID]
		}
		value, err := factory(desc, providerInstance)
		if err != nil {
			return newErr(ErrToolFactory, fmt.Sprintf("$/tools/%s", id),
				"tool %q factory failed: %v", id, err)
		}
		perms, err := permissionsOf(value)
		if err != nil {
			return newErr(ErrToolPermType, fmt.Sprintf("$/tools/%s", id),
				"tool %q: %v", id, err)
		}
		r.tools[id] = ToolInstance{ID: id, Value: value, Permissions: perms}
	}

	for _, id := range r.doc.ComponentOrder {
		desc := r.doc.Components[id]
		factory, ok := r.componentFactories[desc.Type]
		if !ok {
			return newErr(ErrNoComponentFactory, fmt.Sprintf("$/components/%s", id),
				"no component factory registered for type %q", desc.Type)
		}
		var providerInstance map[string]interface{}
		if desc.ProviderID != "" {
			providerInstance = r.providers[desc.ProviderID]
		}
		var toolInstance interface{}
		if desc.ToolID != "" {
			toolInstance = r.tools[desc.ToolID].Value
		}
		value, err := factory(desc, providerInstance, toolInstance)
		if err != nil {
			return newErr(ErrComponentFactory, fmt.Sprintf("$/components/%s", id),
				"component %q factory failed: %v", id, err)
		}
		callable, err := asCallable(value)
		if err != nil {
			return newErr(ErrComponentSignature, fmt.Sprintf("$/components/%s", id),
				"component %q: %v", id, err)
		}
		r.components[id] = callable
	}

	r.resolved = true
	return nil
}

// Resolved reports whether Resolve has completed successfully at least
// once.
func (r *Registry) Resolved() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolved
}

// Provider returns the cached provider instance by id. Satisfies
// component.Lookup.
func (r *Registry) Provider(id string) (map[string]interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.providers[id]
	return v, ok
}

// History returns the cached history backend instance by id. Satisfies
// component.Lookup.
func (r *Registry) History(id string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.histories[id]
	return v, ok
}

// Tool returns the cached tool instance by id.
func (r *Registry) Tool(id string) (ToolInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.tools[id]
	return v, ok
}

// Component returns the cached component callable by id.
func (r *Registry) Component(id string) (component.Callable, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.components[id]
	return v, ok
}

// Closers returns every resolved component that implements component.Closer,
// in deterministic id order, for the scheduler's once-per-definition
// teardown pass (spec §4.4.3, "Resource release").
func (r *Registry) Closers() []component.Closer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []component.Closer
	for _, id := range ids {
		if closer, ok := r.components[id].(component.Closer); ok {
			out = append(out, closer)
		}
	}
	return out
}

// permissionsOf implements the tool contract check of spec §4.2: if the
// tool's materialized value declares permissions (via component.
// PermissionSource, the explicit-interface rendering of the source
// system's attribute probe), they must be an iterable collection and not a
// bare string.
func permissionsOf(value interface{}) ([]string, error) {
	src, ok := value.(component.PermissionSource)
	if !ok {
		return nil, nil
	}
	perms := src.Permissions()
	rv := reflect.ValueOf(perms)
	if rv.Kind() == reflect.String {
		return nil, fmt.Errorf("permissions must be iterable, got a bare string")
	}
	return perms, nil
}

// asCallable implements the component contract check of spec §4.2: the
// factory's result must be callable with exactly three positional
// parameters. Go enforces this for any value that already satisfies
// component.Callable at compile time; the reflective check below exists so
// factories that hand back a loosely-typed value (e.g. reflection-built
// adapters over a scripting bridge) are still caught at resolution time
// rather than failing confusingly on first invocation.
func asCallable(value interface{}) (component.Callable, error) {
	callable, ok := value.(component.Callable)
	if !ok {
		return nil, fmt.Errorf("factory result does not implement Call(ctx, state, inputs)")
	}
	method := reflect.ValueOf(callable).MethodByName("Call")
	if !method.IsValid() {
		return nil, fmt.Errorf("factory result has no Call method")
	}
	if n := method.Type().NumIn(); n != 3 {
		return nil, fmt.Errorf("Call must accept exactly 3 parameters (ctx, state, inputs), got %d", n)
	}
	return callable, nil
}
