package views

import (
	"fmt"
	"math"
	"time"

	"github.com/go-strait/strait/pkg/bridge"
	"github.com/go-strait/strait/pkg/runloop"
)

// ScrollViewType identifies the scroll view component.
const ScrollViewType = "scrollview"

// SnapAlignment selects which viewport edge snap offsets align to.
type SnapAlignment int

const (
	// SnapToStart aligns snap points with the leading viewport edge.
	SnapToStart SnapAlignment = iota
	// SnapToCenter aligns snap points with the viewport center.
	SnapToCenter
	// SnapToEnd aligns snap points with the trailing viewport edge.
	SnapToEnd
)

// ParseSnapAlignment maps the script-side alignment names. Unknown
// names fall back to start.
func ParseSnapAlignment(name string) SnapAlignment {
	switch name {
	case "center":
		return SnapToCenter
	case "end":
		return SnapToEnd
	default:
		return SnapToStart
	}
}

func (a SnapAlignment) String() string {
	switch a {
	case SnapToCenter:
		return "center"
	case SnapToEnd:
		return "end"
	default:
		return "start"
	}
}

// ScrollViewConfig defines scroll behavior passed to the widget.
type ScrollViewConfig struct {
	// ContentInset pads the scrollable content inside the viewport.
	ContentInset EdgeInsets

	// ScrollEventThrottle is the minimum gap between onScroll events.
	// Zero emits one event per widget callback.
	ScrollEventThrottle time.Duration

	// CenterContent centers content smaller than the viewport.
	CenterContent bool

	// SnapToInterval makes deceleration stop at multiples of the
	// interval, in logical pixels. Zero disables snapping.
	SnapToInterval float64

	// SnapToAlignment selects the viewport edge SnapToInterval offsets
	// are relative to.
	SnapToAlignment SnapAlignment

	// AutomaticallyAdjustContentInsets folds host-provided insets
	// (obscuring bars and the like) into the effective content inset.
	AutomaticallyAdjustContentInsets bool
}

// ScrollView wraps a host toolkit scroll widget. It holds at most one
// content child, whose size the content size derives from when no
// explicit content size is set.
//
// The widget reports drag, momentum, and offset changes as host
// events; the adapter turns them into framework events, dropping
// onScroll notifications that land closer together than the configured
// throttle. Boundary events (drag begin/end, momentum begin/end)
// always pass through, so the final position is never lost.
type ScrollView struct {
	baseComponent
	clock  runloop.Clock
	config ScrollViewConfig

	contentOffset Point
	contentSize   Size // explicit override; zero derives from the child
	childSize     Size
	hasChild      bool
	dragging      bool
	decelerating  bool

	lastScrollEmit time.Time
}

// NewScrollView wraps handle in a scroll view adapter.
func NewScrollView(viewID int64, handle HostHandle, events EventSink, clock runloop.Clock, config ScrollViewConfig) *ScrollView {
	if clock == nil {
		clock = runloop.SystemClock()
	}
	return &ScrollView{
		baseComponent: baseComponent{
			viewID:        viewID,
			componentType: ScrollViewType,
			handle:        handle,
			events:        events,
			visible:       true,
		},
		clock:  clock,
		config: config,
	}
}

// Config returns the current scroll configuration.
func (v *ScrollView) Config() ScrollViewConfig {
	return v.config
}

// UpdateConfig replaces the scroll configuration and forwards it to
// the widget.
func (v *ScrollView) UpdateConfig(config ScrollViewConfig) {
	v.config = config
	v.invoke("updateConfig", map[string]any{
		"contentInsetTop":                  config.ContentInset.Top,
		"contentInsetLeft":                 config.ContentInset.Left,
		"contentInsetBottom":               config.ContentInset.Bottom,
		"contentInsetRight":                config.ContentInset.Right,
		"scrollEventThrottle":              float64(config.ScrollEventThrottle) / float64(time.Millisecond),
		"centerContent":                    config.CenterContent,
		"snapToInterval":                   config.SnapToInterval,
		"snapToAlignment":                  config.SnapToAlignment.String(),
		"automaticallyAdjustContentInsets": config.AutomaticallyAdjustContentInsets,
	})
}

// UpdateProps applies a partial property update from the script side.
func (v *ScrollView) UpdateProps(props map[string]any) error {
	config := v.config
	if err := applyScrollViewProps(&config, props); err != nil {
		return err
	}
	v.UpdateConfig(config)
	v.applyBaseProps(props)
	if m := bridge.ParseMap(props["contentOffset"]); m != nil {
		v.SetContentOffset(pointFromMap(m), false)
	}
	if m := bridge.ParseMap(props["contentSize"]); m != nil {
		v.SetContentSize(sizeFromMap(m))
	}
	return nil
}

// AttachContent registers the single content child's size. A scroll
// view holds at most one content child; a second attach is an error.
func (v *ScrollView) AttachContent(size Size) error {
	if v.hasChild {
		return ErrContentAttached
	}
	v.hasChild = true
	v.childSize = size
	return nil
}

// ResizeContent updates the content child's size after layout.
func (v *ScrollView) ResizeContent(size Size) {
	if !v.hasChild {
		return
	}
	v.childSize = size
}

// DetachContent releases the content child slot.
func (v *ScrollView) DetachContent() {
	v.hasChild = false
	v.childSize = Size{}
}

// ContentSize returns the explicit content size when one was set, and
// otherwise falls back to the content child's size.
func (v *ScrollView) ContentSize() Size {
	if !v.contentSize.IsZero() {
		return v.contentSize
	}
	return v.childSize
}

// SetContentSize overrides the derived content size. A zero size
// restores derivation from the content child.
func (v *ScrollView) SetContentSize(size Size) {
	v.contentSize = size
	v.invoke("setContentSize", map[string]any{
		"width":  size.Width,
		"height": size.Height,
	})
}

// ContentOffset returns the current scroll position.
func (v *ScrollView) ContentOffset() Point {
	return v.contentOffset
}

// SetContentOffset scrolls programmatically. The offset is forwarded
// to the widget; the resulting movement comes back as host scroll
// events like any other, so no framework event is emitted here.
func (v *ScrollView) SetContentOffset(offset Point, animated bool) {
	v.contentOffset = offset
	v.invoke("setContentOffset", map[string]any{
		"x":        offset.X,
		"y":        offset.Y,
		"animated": animated,
	})
}

// EffectiveContentInset returns the inset actually applied to content:
// the configured inset, plus the host's automatic inset when automatic
// adjustment is enabled.
func (v *ScrollView) EffectiveContentInset(automatic EdgeInsets) EdgeInsets {
	if !v.config.AutomaticallyAdjustContentInsets {
		return v.config.ContentInset
	}
	return v.config.ContentInset.Add(automatic)
}

// CenteredContentOffset returns the offset that centers content
// smaller than the viewport, when centering is enabled. Axes where
// content fills the viewport keep the given offset.
func (v *ScrollView) CenteredContentOffset(offset Point) Point {
	if !v.config.CenterContent {
		return offset
	}
	content := v.ContentSize()
	if content.Width < v.frame.Width {
		offset.X = -(v.frame.Width - content.Width) / 2
	}
	if content.Height < v.frame.Height {
		offset.Y = -(v.frame.Height - content.Height) / 2
	}
	return offset
}

// SnapTargetOffset adjusts a deceleration target so scrolling stops on
// a snap point. Snap points sit at multiples of SnapToInterval in
// content space; the alignment picks which viewport edge lands on
// them. The result is clamped to the scrollable range.
func (v *ScrollView) SnapTargetOffset(proposed, viewportLength, contentLength float64) float64 {
	maxOffset := contentLength - viewportLength
	if maxOffset < 0 {
		maxOffset = 0
	}
	interval := v.config.SnapToInterval
	if interval <= 0 {
		return clamp(proposed, 0, maxOffset)
	}
	var align float64
	switch v.config.SnapToAlignment {
	case SnapToCenter:
		align = viewportLength / 2
	case SnapToEnd:
		align = viewportLength
	}
	snapped := math.Round((proposed+align)/interval)*interval - align
	return clamp(snapped, 0, maxOffset)
}

// Dragging reports whether the user is actively dragging.
func (v *ScrollView) Dragging() bool {
	return v.dragging
}

// Decelerating reports whether a momentum scroll is in flight.
func (v *ScrollView) Decelerating() bool {
	return v.decelerating
}

// HandleHostEvent consumes raw scroll widget events. Offset payloads
// carry x and y in logical pixels.
func (v *ScrollView) HandleHostEvent(event string, payload map[string]any) error {
	offset := pointFromMap(payload)
	switch event {
	case "scrollBeginDrag":
		v.handleScrollBegin(offset)
	case "scroll":
		v.handleScroll(offset)
	case "scrollEndDrag":
		v.handleScrollEnd(offset)
	case "momentumScrollBegin":
		v.handleMomentumBegin(offset)
	case "momentumScrollEnd":
		v.handleMomentumEnd(offset)
	case "scrollAnimationEnd":
		v.handleScrollAnimationEnd(offset)
	default:
		return fmt.Errorf("%w: %s %q", ErrUnknownHostEvent, ScrollViewType, event)
	}
	return nil
}

// DispatchCommand handles script-side commands.
func (v *ScrollView) DispatchCommand(command string, params map[string]any) error {
	switch command {
	case "scrollTo":
		v.SetContentOffset(pointFromMap(params), bridge.ParseBool(params["animated"]))
	case "scrollToEnd":
		content := v.ContentSize()
		target := Point{
			X: math.Max(0, content.Width-v.frame.Width),
			Y: math.Max(0, content.Height-v.frame.Height),
		}
		v.SetContentOffset(target, bridge.ParseBool(params["animated"]))
	case "flashScrollIndicators":
		v.invoke("flashScrollIndicators", nil)
	default:
		return fmt.Errorf("%w: %s %q", ErrUnknownCommand, ScrollViewType, command)
	}
	return nil
}

// handleScrollBegin processes a drag start from the widget.
func (v *ScrollView) handleScrollBegin(offset Point) {
	v.dragging = true
	v.contentOffset = offset
	v.emit("onScrollBeginDrag", v.scrollEventPayload())
}

// handleScroll processes one offset change from the widget. The offset
// always updates adapter state; the onScroll event is dropped when the
// previous one went out less than the throttle ago. Dropping is safe
// because every drag and momentum boundary emits unconditionally with
// the final offset.
func (v *ScrollView) handleScroll(offset Point) {
	v.contentOffset = offset
	if v.config.ScrollEventThrottle > 0 {
		now := v.clock.Now()
		if now.Sub(v.lastScrollEmit) < v.config.ScrollEventThrottle {
			return
		}
		v.lastScrollEmit = now
	}
	v.emit("onScroll", v.scrollEventPayload())
}

// handleScrollEnd processes a drag end from the widget.
func (v *ScrollView) handleScrollEnd(offset Point) {
	v.dragging = false
	v.contentOffset = offset
	v.emit("onScrollEndDrag", v.scrollEventPayload())
}

// handleMomentumBegin processes the start of deceleration.
func (v *ScrollView) handleMomentumBegin(offset Point) {
	v.decelerating = true
	v.contentOffset = offset
	v.emit("onMomentumScrollBegin", v.scrollEventPayload())
}

// handleMomentumEnd processes the end of deceleration.
func (v *ScrollView) handleMomentumEnd(offset Point) {
	v.decelerating = false
	v.contentOffset = offset
	v.emit("onMomentumScrollEnd", v.scrollEventPayload())
}

// handleScrollAnimationEnd processes the end of a programmatic
// animated scroll.
func (v *ScrollView) handleScrollAnimationEnd(offset Point) {
	v.contentOffset = offset
	v.emit("onScrollAnimationEnd", v.scrollEventPayload())
}

// scrollEventPayload builds the event body shared by all scroll
// events: where the content is, how big it is, and the viewport.
func (v *ScrollView) scrollEventPayload() map[string]any {
	content := v.ContentSize()
	return map[string]any{
		"contentOffset": map[string]any{
			"x": v.contentOffset.X,
			"y": v.contentOffset.Y,
		},
		"contentInset": map[string]any{
			"top":    v.config.ContentInset.Top,
			"left":   v.config.ContentInset.Left,
			"bottom": v.config.ContentInset.Bottom,
			"right":  v.config.ContentInset.Right,
		},
		"contentSize": map[string]any{
			"width":  content.Width,
			"height": content.Height,
		},
		"layoutMeasurement": map[string]any{
			"width":  v.frame.Width,
			"height": v.frame.Height,
		},
	}
}

// applyScrollViewProps folds script-side props into config. Missing
// keys leave fields untouched.
func applyScrollViewProps(config *ScrollViewConfig, props map[string]any) error {
	if raw, ok := props["contentInset"]; ok {
		m := bridge.ParseMap(raw)
		if m == nil {
			return fmt.Errorf("%w: contentInset must be an inset map", bridge.ErrInvalidArguments)
		}
		config.ContentInset = insetsFromMap(m)
	}
	if raw, ok := props["scrollEventThrottle"]; ok {
		ms, ok := bridge.ToFloat64(raw)
		if !ok || ms < 0 {
			return fmt.Errorf("%w: scrollEventThrottle must be non-negative milliseconds", bridge.ErrInvalidArguments)
		}
		config.ScrollEventThrottle = time.Duration(ms * float64(time.Millisecond))
	}
	if raw, ok := props["centerContent"]; ok {
		config.CenterContent = bridge.ParseBool(raw)
	}
	if raw, ok := props["snapToInterval"]; ok {
		interval, ok := bridge.ToFloat64(raw)
		if !ok || interval < 0 {
			return fmt.Errorf("%w: snapToInterval must be non-negative", bridge.ErrInvalidArguments)
		}
		config.SnapToInterval = interval
	}
	if raw, ok := props["snapToAlignment"]; ok {
		config.SnapToAlignment = ParseSnapAlignment(bridge.ParseString(raw))
	}
	if raw, ok := props["automaticallyAdjustContentInsets"]; ok {
		config.AutomaticallyAdjustContentInsets = bridge.ParseBool(raw)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// scrollViewFactory creates scroll view components.
type scrollViewFactory struct{}

func (f *scrollViewFactory) ComponentType() string {
	return ScrollViewType
}

func (f *scrollViewFactory) Config() ViewConfig {
	return scrollViewConfig()
}

func (f *scrollViewFactory) Create(env Env, viewID int64, handle HostHandle, params map[string]any) (Component, error) {
	config := ScrollViewConfig{}
	if err := applyScrollViewProps(&config, params); err != nil {
		return nil, err
	}
	return NewScrollView(viewID, handle, env.Events, env.Clock, config), nil
}

// scrollViewConfig returns the scroll view's own config fragment.
func scrollViewConfig() ViewConfig {
	return ViewConfig{
		Type: ScrollViewType,
		Props: map[string]string{
			"contentInset":                     "edgeInsets",
			"contentOffset":                    "point",
			"contentSize":                      "size",
			"scrollEventThrottle":              "number",
			"centerContent":                    "bool",
			"snapToInterval":                   "number",
			"snapToAlignment":                  "string",
			"automaticallyAdjustContentInsets": "bool",
		},
		Events: []string{
			"onScroll",
			"onScrollBeginDrag",
			"onScrollEndDrag",
			"onMomentumScrollBegin",
			"onMomentumScrollEnd",
			"onScrollAnimationEnd",
		},
	}
}
