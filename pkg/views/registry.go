package views

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-strait/strait/pkg/runloop"
)

// Env carries the host services components are built against: the
// toolkit that owns the real widgets, the sink framework events flow
// through, and the clock adapters use for event throttling.
type Env struct {
	Host   Host
	Events EventSink
	Clock  runloop.Clock
}

// Factory builds component adapters of one type.
type Factory interface {
	// ComponentType returns the type identifier this factory creates.
	ComponentType() string

	// Config returns the factory's own config fragment. It is merged
	// over the base config when served to the script side.
	Config() ViewConfig

	// Create wraps a freshly created widget handle in an adapter,
	// applying the creation params.
	Create(env Env, viewID int64, handle HostHandle, params map[string]any) (Component, error)
}

// Registry manages component types and live instances. Construct one
// per host; the built-in factories come pre-registered.
type Registry struct {
	env    Env
	nextID atomic.Int64

	mu         sync.RWMutex
	factories  map[string]Factory
	components map[int64]Component
}

// NewRegistry creates a registry. The env's Host and Events are
// required; a nil Clock defaults to the system clock.
func NewRegistry(env Env) *Registry {
	if env.Host == nil {
		panic("strait: views registry requires a host")
	}
	if env.Events == nil {
		panic("strait: views registry requires an event sink")
	}
	if env.Clock == nil {
		env.Clock = runloop.SystemClock()
	}
	r := &Registry{
		env:        env,
		factories:  make(map[string]Factory),
		components: make(map[int64]Component),
	}
	r.RegisterFactory(&scrollViewFactory{})
	r.RegisterFactory(&textFieldFactory{})
	return r
}

// RegisterFactory registers a factory for a component type, replacing
// any previous registration for the same type.
func (r *Registry) RegisterFactory(factory Factory) {
	r.mu.Lock()
	r.factories[factory.ComponentType()] = factory
	r.mu.Unlock()
}

// Create builds a component of the given type: the host instantiates
// the widget, then the factory wraps the handle in an adapter. The
// handle is released again if the factory rejects the params.
func (r *Registry) Create(componentType string, params map[string]any) (Component, error) {
	r.mu.RLock()
	factory, ok := r.factories[componentType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrComponentTypeNotFound, componentType)
	}

	viewID := r.nextID.Add(1)
	handle, err := r.env.Host.CreateView(componentType, viewID, params)
	if err != nil {
		return nil, err
	}
	component, err := factory.Create(r.env, viewID, handle, params)
	if err != nil {
		handle.Release()
		return nil, err
	}

	r.mu.Lock()
	r.components[viewID] = component
	r.mu.Unlock()
	return component, nil
}

// Dispose destroys a component. Unknown ids are ignored.
func (r *Registry) Dispose(viewID int64) {
	r.mu.Lock()
	component, ok := r.components[viewID]
	if ok {
		delete(r.components, viewID)
	}
	r.mu.Unlock()

	if ok {
		component.Dispose()
	}
}

// DisposeAll destroys every live component. Used at teardown.
func (r *Registry) DisposeAll() {
	r.mu.Lock()
	components := make([]Component, 0, len(r.components))
	for _, component := range r.components {
		components = append(components, component)
	}
	r.components = make(map[int64]Component)
	r.mu.Unlock()

	for _, component := range components {
		component.Dispose()
	}
}

// Component returns the live component with the given id, or nil.
func (r *Registry) Component(viewID int64) Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.components[viewID]
}

// ComponentCount returns the number of live components.
func (r *Registry) ComponentCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.components)
}

// DeliverHostEvent routes a raw widget event to its component adapter.
// Must be called on the loop goroutine.
func (r *Registry) DeliverHostEvent(viewID int64, event string, payload map[string]any) error {
	component := r.Component(viewID)
	if component == nil {
		return fmt.Errorf("%w: %d", ErrComponentNotFound, viewID)
	}
	return component.HandleHostEvent(event, payload)
}

// Config returns the merged view config for a registered type.
// Built-in types come from the process-wide cache; custom factories
// are merged on demand.
func (r *Registry) Config(componentType string) (ViewConfig, bool) {
	if config, ok := ConfigFor(componentType); ok {
		return config, true
	}
	r.mu.RLock()
	factory, ok := r.factories[componentType]
	r.mu.RUnlock()
	if !ok {
		return ViewConfig{}, false
	}
	return MergeViewConfigs(BaseViewConfig(), factory.Config()), true
}

// Configs returns merged configs for every registered component type.
// The result is a fresh map; built-in entries come from the process
// cache.
func (r *Registry) Configs() map[string]ViewConfig {
	cached := Configs()
	r.mu.RLock()
	defer r.mu.RUnlock()
	configs := make(map[string]ViewConfig, len(r.factories))
	for componentType, factory := range r.factories {
		if config, ok := cached[componentType]; ok {
			configs[componentType] = config
			continue
		}
		configs[componentType] = MergeViewConfigs(BaseViewConfig(), factory.Config())
	}
	return configs
}
