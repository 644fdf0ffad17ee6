package views

import (
	"fmt"

	"github.com/go-strait/strait/pkg/bridge"
)

// ModuleName is the name scripts use to address component management.
const ModuleName = "views"

// ScriptModuleName is the script-side module that receives component
// events.
const ScriptModuleName = "views"

// Module exposes the component registry to the script runtime:
// creation, disposal, property updates, commands, and the view config
// metadata.
type Module struct {
	registry *Registry
}

// NewModule wraps a registry in its bridge module.
func NewModule(registry *Registry) *Module {
	if registry == nil {
		panic("strait: views.NewModule requires a registry")
	}
	return &Module{registry: registry}
}

// ModuleName implements bridge.Module.
func (m *Module) ModuleName() string {
	return ModuleName
}

// Registry returns the underlying component registry.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Invoke implements bridge.Module.
func (m *Module) Invoke(method string, args []any) (any, error) {
	switch method {
	case "createView":
		return m.createView(args)
	case "disposeView":
		return m.disposeView(args)
	case "updateView":
		return m.updateView(args)
	case "dispatchCommand":
		return m.dispatchCommand(args)
	case "getViewConfigs":
		return m.getViewConfigs(), nil
	default:
		return nil, fmt.Errorf("%w: views.%s", bridge.ErrMethodNotFound, method)
	}
}

// Invalidate disposes every live component at bridge teardown.
func (m *Module) Invalidate() {
	m.registry.DisposeAll()
}

func (m *Module) createView(args []any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("%w: createView needs a component type", bridge.ErrInvalidArguments)
	}
	componentType := bridge.ParseString(args[0])
	if componentType == "" {
		return nil, fmt.Errorf("%w: createView needs a component type", bridge.ErrInvalidArguments)
	}
	var params map[string]any
	if len(args) > 1 {
		params = bridge.ParseMap(args[1])
	}
	component, err := m.registry.Create(componentType, params)
	if err != nil {
		return nil, err
	}
	return component.ViewID(), nil
}

func (m *Module) disposeView(args []any) (any, error) {
	viewID, err := viewIDArg(args, "disposeView")
	if err != nil {
		return nil, err
	}
	m.registry.Dispose(viewID)
	return nil, nil
}

func (m *Module) updateView(args []any) (any, error) {
	viewID, err := viewIDArg(args, "updateView")
	if err != nil {
		return nil, err
	}
	component := m.registry.Component(viewID)
	if component == nil {
		return nil, fmt.Errorf("%w: %d", ErrComponentNotFound, viewID)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: updateView needs a props map", bridge.ErrInvalidArguments)
	}
	props := bridge.ParseMap(args[1])
	if props == nil {
		return nil, fmt.Errorf("%w: updateView needs a props map", bridge.ErrInvalidArguments)
	}
	return nil, component.UpdateProps(props)
}

func (m *Module) dispatchCommand(args []any) (any, error) {
	viewID, err := viewIDArg(args, "dispatchCommand")
	if err != nil {
		return nil, err
	}
	component := m.registry.Component(viewID)
	if component == nil {
		return nil, fmt.Errorf("%w: %d", ErrComponentNotFound, viewID)
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: dispatchCommand needs a command name", bridge.ErrInvalidArguments)
	}
	command := bridge.ParseString(args[1])
	commander, ok := component.(Commander)
	if !ok {
		return nil, fmt.Errorf("%w: %s takes no commands", ErrUnknownCommand, component.ComponentType())
	}
	var params map[string]any
	if len(args) > 2 {
		params = bridge.ParseMap(args[2])
	}
	return nil, commander.DispatchCommand(command, params)
}

// getViewConfigs serializes the merged configs for the script side.
func (m *Module) getViewConfigs() map[string]any {
	configs := m.registry.Configs()
	result := make(map[string]any, len(configs))
	for componentType, config := range configs {
		props := make(map[string]any, len(config.Props))
		for name, kind := range config.Props {
			props[name] = kind
		}
		events := make([]any, len(config.Events))
		for i, event := range config.Events {
			events[i] = event
		}
		result[componentType] = map[string]any{
			"type":   config.Type,
			"props":  props,
			"events": events,
		}
	}
	return result
}

// viewIDArg extracts the leading view id argument.
func viewIDArg(args []any, method string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: %s needs a view id", bridge.ErrInvalidArguments, method)
	}
	viewID, ok := bridge.ToInt64(args[0])
	if !ok {
		return 0, fmt.Errorf("%w: %s needs a view id", bridge.ErrInvalidArguments, method)
	}
	return viewID, nil
}

// BridgeEventSink forwards component events onto the bridge's outbound
// queue for script-side delivery. Enqueueing never blocks and never
// executes script.
type BridgeEventSink struct {
	Bridge *bridge.Bridge
}

// DispatchEvent enqueues one dispatchEvent call.
func (s *BridgeEventSink) DispatchEvent(viewID int64, event string, payload map[string]any) {
	s.Bridge.EnqueueCall(bridge.Call{
		Module: ScriptModuleName,
		Method: "dispatchEvent",
		Args:   []any{viewID, event, payload},
	})
}
