package views

import (
	"fmt"

	"github.com/go-strait/strait/pkg/bridge"
)

// TextFieldType identifies the single-line text input component.
const TextFieldType = "textfield"

// TextFieldConfig defines styling and placeholder state passed to the
// widget.
type TextFieldConfig struct {
	Placeholder      string
	PlaceholderColor uint32 // ARGB
	TextColor        uint32 // ARGB
	FontFamily       string
	FontSize         float64
	TextAlignment    int // 0=left, 1=center, 2=right

	// Padding inside the widget
	PaddingLeft   float64
	PaddingTop    float64
	PaddingRight  float64
	PaddingBottom float64
}

// TextField wraps a host toolkit single-line text editor.
//
// Programmatic mutations (SetText, SetSelection, SetValue, SelectAll)
// update the widget without emitting framework events; only
// user-initiated edits reported by the widget notify the script side.
// This keeps prop updates from echoing back as change events.
type TextField struct {
	baseComponent
	config TextFieldConfig

	text    string
	selBase int
	selExt  int
	focused bool

	pendingPaste bool
	lastWasPaste bool
}

// NewTextField wraps handle in a text field adapter.
func NewTextField(viewID int64, handle HostHandle, events EventSink, config TextFieldConfig) *TextField {
	return &TextField{
		baseComponent: baseComponent{
			viewID:        viewID,
			componentType: TextFieldType,
			handle:        handle,
			events:        events,
			visible:       true,
		},
		config: config,
	}
}

// Config returns the current text field configuration.
func (v *TextField) Config() TextFieldConfig {
	return v.config
}

// UpdateConfig replaces the configuration and forwards it to the
// widget.
func (v *TextField) UpdateConfig(config TextFieldConfig) {
	v.config = config
	v.invoke("updateConfig", map[string]any{
		"placeholder":      config.Placeholder,
		"placeholderColor": config.PlaceholderColor,
		"textColor":        config.TextColor,
		"fontFamily":       config.FontFamily,
		"fontSize":         config.FontSize,
		"textAlignment":    config.TextAlignment,
		"paddingLeft":      config.PaddingLeft,
		"paddingTop":       config.PaddingTop,
		"paddingRight":     config.PaddingRight,
		"paddingBottom":    config.PaddingBottom,
	})
}

// UpdateProps applies a partial property update from the script side.
func (v *TextField) UpdateProps(props map[string]any) error {
	config := v.config
	applyTextFieldProps(&config, props)
	v.UpdateConfig(config)
	v.applyBaseProps(props)
	if text, ok := props["text"].(string); ok {
		v.SetText(text)
	}
	if m := bridge.ParseMap(props["selection"]); m != nil {
		base, _ := bridge.ToInt(m["start"])
		extent, _ := bridge.ToInt(m["end"])
		v.SetSelection(base, extent)
	}
	return nil
}

// SetText replaces the text from the native side. The selection clamps
// to the new length. No change event is emitted.
func (v *TextField) SetText(text string) {
	v.text = text
	v.clampSelection()
	v.invoke("setText", map[string]any{
		"text": text,
	})
}

// SetSelection moves the cursor or selection from the native side,
// clamped to the text bounds. No selection event is emitted.
func (v *TextField) SetSelection(base, extent int) {
	v.selBase = base
	v.selExt = extent
	v.clampSelection()
	v.invoke("setSelection", map[string]any{
		"selectionBase":   v.selBase,
		"selectionExtent": v.selExt,
	})
}

// SetValue replaces text and selection atomically. No events are
// emitted.
func (v *TextField) SetValue(text string, base, extent int) {
	v.text = text
	v.selBase = base
	v.selExt = extent
	v.clampSelection()
	v.invoke("setValue", map[string]any{
		"text":            text,
		"selectionBase":   v.selBase,
		"selectionExtent": v.selExt,
	})
}

// SelectAll selects the whole text. No selection event is emitted.
func (v *TextField) SelectAll() {
	v.selBase = 0
	v.selExt = len(v.text)
	v.invoke("selectAll", nil)
}

// Text returns the current text.
func (v *TextField) Text() string {
	return v.text
}

// Selection returns the current selection bounds.
func (v *TextField) Selection() (base, extent int) {
	return v.selBase, v.selExt
}

// TextWasPasted reports whether the most recent text change came from
// a paste.
func (v *TextField) TextWasPasted() bool {
	return v.lastWasPaste
}

// Focus asks the widget to take keyboard focus. The focus state
// updates when the widget reports the change back.
func (v *TextField) Focus() {
	v.invoke("focus", nil)
}

// Blur asks the widget to give up keyboard focus.
func (v *TextField) Blur() {
	v.invoke("blur", nil)
}

// IsFocused reports whether the widget holds keyboard focus.
func (v *TextField) IsFocused() bool {
	return v.focused
}

// HandleHostEvent consumes raw editor widget events.
func (v *TextField) HandleHostEvent(event string, payload map[string]any) error {
	switch event {
	case "textChanged":
		text, _ := payload["text"].(string)
		base, _ := bridge.ToInt(payload["selectionBase"])
		extent, _ := bridge.ToInt(payload["selectionExtent"])
		v.handleTextChanged(text, base, extent)
	case "selectionChanged":
		base, _ := bridge.ToInt(payload["selectionBase"])
		extent, _ := bridge.ToInt(payload["selectionExtent"])
		v.handleSelectionChanged(base, extent)
	case "paste":
		v.handlePaste()
	case "submit":
		v.handleSubmit()
	case "focusChanged":
		v.handleFocusChanged(bridge.ParseBool(payload["focused"]))
	default:
		return fmt.Errorf("%w: %s %q", ErrUnknownHostEvent, TextFieldType, event)
	}
	return nil
}

// DispatchCommand handles script-side commands.
func (v *TextField) DispatchCommand(command string, params map[string]any) error {
	switch command {
	case "focus":
		v.Focus()
	case "blur":
		v.Blur()
	case "selectAll":
		v.SelectAll()
	case "setValue":
		text, _ := params["text"].(string)
		base, _ := bridge.ToInt(params["selectionBase"])
		extent, _ := bridge.ToInt(params["selectionExtent"])
		v.SetValue(text, base, extent)
	default:
		return fmt.Errorf("%w: %s %q", ErrUnknownCommand, TextFieldType, command)
	}
	return nil
}

// handlePaste records that the next text change originates from a
// paste. The widget reports the paste before the resulting change.
func (v *TextField) handlePaste() {
	v.pendingPaste = true
}

// handleTextChanged processes a user edit reported by the widget.
func (v *TextField) handleTextChanged(text string, selBase, selExt int) {
	v.lastWasPaste = v.pendingPaste
	v.pendingPaste = false
	v.text = text
	v.selBase = selBase
	v.selExt = selExt
	v.clampSelection()
	v.emit("onChange", map[string]any{
		"text":   text,
		"pasted": v.lastWasPaste,
	})
}

// handleSelectionChanged processes a user-driven caret or selection
// move that arrives without a text change.
func (v *TextField) handleSelectionChanged(selBase, selExt int) {
	v.selBase = selBase
	v.selExt = selExt
	v.clampSelection()
	v.emit("onSelectionChange", map[string]any{
		"selection": map[string]any{
			"start": v.selBase,
			"end":   v.selExt,
		},
	})
}

// handleSubmit processes the return key.
func (v *TextField) handleSubmit() {
	v.emit("onSubmitEditing", map[string]any{
		"text": v.text,
	})
}

// handleFocusChanged processes focus moves reported by the widget.
func (v *TextField) handleFocusChanged(focused bool) {
	if v.focused == focused {
		return
	}
	v.focused = focused
	if focused {
		v.emit("onFocus", nil)
	} else {
		v.emit("onBlur", nil)
	}
}

// clampSelection keeps the selection inside the text bounds.
func (v *TextField) clampSelection() {
	n := len(v.text)
	v.selBase = clampInt(v.selBase, 0, n)
	v.selExt = clampInt(v.selExt, 0, n)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// applyTextFieldProps folds script-side props into config, leaving
// missing keys untouched.
func applyTextFieldProps(config *TextFieldConfig, props map[string]any) {
	if v, ok := props["placeholder"].(string); ok {
		config.Placeholder = v
	}
	if v, ok := toUint32(props["placeholderColor"]); ok {
		config.PlaceholderColor = v
	}
	if v, ok := toUint32(props["textColor"]); ok {
		config.TextColor = v
	}
	if v, ok := props["fontFamily"].(string); ok {
		config.FontFamily = v
	}
	if v, ok := bridge.ToFloat64(props["fontSize"]); ok {
		config.FontSize = v
	}
	if v, ok := bridge.ToInt(props["textAlignment"]); ok {
		config.TextAlignment = v
	}
	if v, ok := bridge.ToFloat64(props["paddingLeft"]); ok {
		config.PaddingLeft = v
	}
	if v, ok := bridge.ToFloat64(props["paddingTop"]); ok {
		config.PaddingTop = v
	}
	if v, ok := bridge.ToFloat64(props["paddingRight"]); ok {
		config.PaddingRight = v
	}
	if v, ok := bridge.ToFloat64(props["paddingBottom"]); ok {
		config.PaddingBottom = v
	}
}

// toUint32 converts various numeric types to uint32, for ARGB colors.
func toUint32(v any) (uint32, bool) {
	switch n := v.(type) {
	case uint32:
		return n, true
	case int:
		return uint32(n), true
	case int64:
		return uint32(n), true
	case float64:
		return uint32(n), true
	default:
		return 0, false
	}
}

// textFieldFactory creates text field components.
type textFieldFactory struct{}

func (f *textFieldFactory) ComponentType() string {
	return TextFieldType
}

func (f *textFieldFactory) Config() ViewConfig {
	return textFieldConfig()
}

func (f *textFieldFactory) Create(env Env, viewID int64, handle HostHandle, params map[string]any) (Component, error) {
	config := TextFieldConfig{}
	applyTextFieldProps(&config, params)
	field := NewTextField(viewID, handle, env.Events, config)
	// The host already received the creation params; the initial text
	// seeds adapter state without another widget round trip.
	if text, ok := params["text"].(string); ok {
		field.text = text
	}
	return field, nil
}

// textFieldConfig returns the text field's own config fragment.
func textFieldConfig() ViewConfig {
	return ViewConfig{
		Type: TextFieldType,
		Props: map[string]string{
			"text":             "string",
			"placeholder":      "string",
			"placeholderColor": "color",
			"textColor":        "color",
			"fontFamily":       "string",
			"fontSize":         "number",
			"textAlignment":    "number",
			"paddingLeft":      "number",
			"paddingTop":       "number",
			"paddingRight":     "number",
			"paddingBottom":    "number",
			"selection":        "range",
		},
		Events: []string{
			"onChange",
			"onSelectionChange",
			"onSubmitEditing",
			"onFocus",
			"onBlur",
		},
	}
}
