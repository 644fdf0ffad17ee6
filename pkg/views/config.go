package views

import "sync"

// ViewConfig describes a component type to the script side: the
// properties it accepts (name to type tag) and the events it can emit.
// The script runtime uses it to validate props and wire event handlers
// without hardcoding component shapes.
type ViewConfig struct {
	Type   string
	Props  map[string]string
	Events []string
}

// BaseViewConfig returns the config fragment shared by every component
// type: the properties the base adapter itself implements.
func BaseViewConfig() ViewConfig {
	return ViewConfig{
		Props: map[string]string{
			"frame":   "rect",
			"visible": "bool",
		},
	}
}

// MergeViewConfigs layers own over base: own wins on property name
// collisions, and events are the union with base's first and
// duplicates dropped. The result shares no maps or slices with its
// inputs.
func MergeViewConfigs(base, own ViewConfig) ViewConfig {
	merged := ViewConfig{
		Type:  own.Type,
		Props: make(map[string]string, len(base.Props)+len(own.Props)),
	}
	if merged.Type == "" {
		merged.Type = base.Type
	}
	for name, kind := range base.Props {
		merged.Props[name] = kind
	}
	for name, kind := range own.Props {
		merged.Props[name] = kind
	}

	seen := make(map[string]bool, len(base.Events)+len(own.Events))
	appendEvents := func(events []string) {
		for _, event := range events {
			if seen[event] {
				continue
			}
			seen[event] = true
			merged.Events = append(merged.Events, event)
		}
	}
	appendEvents(base.Events)
	appendEvents(own.Events)
	return merged
}

// The merged configs for the built-in component types are computed
// once per process and shared afterward. All construction happens
// inside the once, so later reads need no locking under the loop's
// single execution context.
var (
	viewConfigsOnce sync.Once
	viewConfigs     map[string]ViewConfig
)

// Configs returns the merged view configs for the built-in component
// types, keyed by type name. The map populates on first call; callers
// must treat it as read-only.
func Configs() map[string]ViewConfig {
	viewConfigsOnce.Do(func() {
		base := BaseViewConfig()
		builtins := []ViewConfig{
			scrollViewConfig(),
			textFieldConfig(),
		}
		viewConfigs = make(map[string]ViewConfig, len(builtins))
		for _, config := range builtins {
			viewConfigs[config.Type] = MergeViewConfigs(base, config)
		}
	})
	return viewConfigs
}

// ConfigFor returns the merged config for one built-in component type.
func ConfigFor(componentType string) (ViewConfig, bool) {
	config, ok := Configs()[componentType]
	return config, ok
}
