// Package views wraps host toolkit widgets as framework-managed
// components. Each component is a thin adapter struct around an owned
// widget handle: the adapter tracks framework-side state, forwards
// property changes to the widget, and turns raw widget events into
// framework events for the script side. There is no widget
// inheritance; the toolkit stays behind the Host interface.
//
// Adapter methods run on the loop goroutine, the same designated
// context the bridge and the timer scheduler use, so adapters keep no
// locks. The host shell marshals toolkit callbacks onto the loop
// before delivering them through Registry.DeliverHostEvent.
package views

import (
	"errors"

	"github.com/go-strait/strait/pkg/bridge"
)

// Standard errors for component operations.
var (
	// ErrComponentTypeNotFound indicates no factory is registered for the type.
	ErrComponentTypeNotFound = errors.New("component type not found")

	// ErrComponentNotFound indicates no live component has the id.
	ErrComponentNotFound = errors.New("component not found")

	// ErrUnknownHostEvent indicates a widget event the adapter does not handle.
	ErrUnknownHostEvent = errors.New("unknown host event")

	// ErrUnknownCommand indicates a command the component does not accept.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrContentAttached indicates a scroll view already holds its single
	// content child.
	ErrContentAttached = errors.New("scroll view content already attached")
)

// Point is a position in logical pixels.
type Point struct {
	X float64
	Y float64
}

// Size is an extent in logical pixels.
type Size struct {
	Width  float64
	Height float64
}

// IsZero reports whether the size has no extent.
func (s Size) IsZero() bool {
	return s.Width == 0 && s.Height == 0
}

// Rect is a rectangle in logical pixels.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// EdgeInsets describes padding applied to each edge of a rectangle.
type EdgeInsets struct {
	Top    float64
	Left   float64
	Bottom float64
	Right  float64
}

// Add returns the sum of two inset sets, edge by edge.
func (e EdgeInsets) Add(other EdgeInsets) EdgeInsets {
	return EdgeInsets{
		Top:    e.Top + other.Top,
		Left:   e.Left + other.Left,
		Bottom: e.Bottom + other.Bottom,
		Right:  e.Right + other.Right,
	}
}

// HostHandle is the opaque handle to one toolkit widget. A component
// adapter owns exactly one handle and releases it on Dispose.
type HostHandle interface {
	// Invoke forwards a property update or command to the widget.
	Invoke(method string, params map[string]any) error

	// Release destroys the widget. Called once, by the owning adapter.
	Release()
}

// Host is the toolkit integration that instantiates widgets.
type Host interface {
	// CreateView instructs the toolkit to build a widget for the given
	// component and returns its handle. The params are the component's
	// creation props, already in script form.
	CreateView(componentType string, viewID int64, params map[string]any) (HostHandle, error)
}

// EventSink receives framework events emitted by components, for
// delivery to the script side.
type EventSink interface {
	DispatchEvent(viewID int64, event string, payload map[string]any)
}

// Component is the capability surface the framework needs from a
// managed native component: geometry placement, property updates,
// intake of raw widget events, and teardown.
type Component interface {
	// ViewID returns the unique identifier for this component.
	ViewID() int64

	// ComponentType returns the type identifier (e.g. "scrollview").
	ComponentType() string

	// SetFrame positions and sizes the widget in logical pixels.
	SetFrame(frame Rect)

	// SetVisible shows or hides the widget.
	SetVisible(visible bool)

	// UpdateProps applies a partial property update from the script side.
	UpdateProps(props map[string]any) error

	// HandleHostEvent consumes one raw widget event and emits the
	// corresponding framework event, if any.
	HandleHostEvent(event string, payload map[string]any) error

	// Dispose releases the widget handle. Idempotent.
	Dispose()
}

// Commander is implemented by components that accept script-side
// commands beyond property updates.
type Commander interface {
	DispatchCommand(command string, params map[string]any) error
}

// baseComponent provides the shared adapter implementation: identity,
// geometry, visibility, and the owned handle's lifecycle.
type baseComponent struct {
	viewID        int64
	componentType string
	handle        HostHandle
	events        EventSink
	frame         Rect
	visible       bool
	disposed      bool
}

func (c *baseComponent) ViewID() int64 {
	return c.viewID
}

func (c *baseComponent) ComponentType() string {
	return c.componentType
}

// Frame returns the last frame applied by layout.
func (c *baseComponent) Frame() Rect {
	return c.frame
}

// Visible reports whether the widget is shown.
func (c *baseComponent) Visible() bool {
	return c.visible
}

func (c *baseComponent) SetFrame(frame Rect) {
	c.frame = frame
	c.invoke("setFrame", map[string]any{
		"x":      frame.X,
		"y":      frame.Y,
		"width":  frame.Width,
		"height": frame.Height,
	})
}

func (c *baseComponent) SetVisible(visible bool) {
	c.visible = visible
	c.invoke("setVisible", map[string]any{
		"visible": visible,
	})
}

func (c *baseComponent) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.handle.Release()
}

// invoke forwards to the widget; a disposed adapter drops the call.
func (c *baseComponent) invoke(method string, params map[string]any) error {
	if c.disposed {
		return nil
	}
	return c.handle.Invoke(method, params)
}

// emit sends one framework event through the sink. Disposed adapters
// are silent: a widget callback racing teardown must not resurface.
func (c *baseComponent) emit(event string, payload map[string]any) {
	if c.disposed || c.events == nil {
		return
	}
	c.events.DispatchEvent(c.viewID, event, payload)
}

// applyBaseProps consumes the props shared by every component type.
func (c *baseComponent) applyBaseProps(props map[string]any) {
	if m := bridge.ParseMap(props["frame"]); m != nil {
		c.SetFrame(rectFromMap(m))
	}
	if raw, ok := props["visible"]; ok {
		c.SetVisible(bridge.ParseBool(raw))
	}
}

func pointFromMap(m map[string]any) Point {
	p := Point{}
	p.X, _ = bridge.ToFloat64(m["x"])
	p.Y, _ = bridge.ToFloat64(m["y"])
	return p
}

func sizeFromMap(m map[string]any) Size {
	s := Size{}
	s.Width, _ = bridge.ToFloat64(m["width"])
	s.Height, _ = bridge.ToFloat64(m["height"])
	return s
}

func rectFromMap(m map[string]any) Rect {
	r := Rect{}
	r.X, _ = bridge.ToFloat64(m["x"])
	r.Y, _ = bridge.ToFloat64(m["y"])
	r.Width, _ = bridge.ToFloat64(m["width"])
	r.Height, _ = bridge.ToFloat64(m["height"])
	return r
}

func insetsFromMap(m map[string]any) EdgeInsets {
	e := EdgeInsets{}
	e.Top, _ = bridge.ToFloat64(m["top"])
	e.Left, _ = bridge.ToFloat64(m["left"])
	e.Bottom, _ = bridge.ToFloat64(m["bottom"])
	e.Right, _ = bridge.ToFloat64(m["right"])
	return e
}

// HeadlessHost is a Host with no toolkit behind it: every widget
// handle accepts and discards all calls. It backs bundle runs without
// a GUI.
type HeadlessHost struct{}

// CreateView returns a handle that ignores everything.
func (HeadlessHost) CreateView(componentType string, viewID int64, params map[string]any) (HostHandle, error) {
	return headlessHandle{}, nil
}

type headlessHandle struct{}

func (headlessHandle) Invoke(method string, params map[string]any) error {
	return nil
}

func (headlessHandle) Release() {}
