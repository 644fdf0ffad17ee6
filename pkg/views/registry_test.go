package views

import (
	"errors"
	"testing"

	"github.com/go-strait/strait/pkg/runloop"
)

// fakeHandle records widget invocations.
type fakeHandle struct {
	viewID   int64
	invokes  []invocation
	released int
}

type invocation struct {
	method string
	params map[string]any
}

func (h *fakeHandle) Invoke(method string, params map[string]any) error {
	h.invokes = append(h.invokes, invocation{method: method, params: params})
	return nil
}

func (h *fakeHandle) Release() {
	h.released++
}

// lastInvoke returns the params of the most recent invocation of
// method, or nil if it never ran.
func (h *fakeHandle) lastInvoke(method string) map[string]any {
	for i := len(h.invokes) - 1; i >= 0; i-- {
		if h.invokes[i].method == method {
			if h.invokes[i].params == nil {
				return map[string]any{}
			}
			return h.invokes[i].params
		}
	}
	return nil
}

func (h *fakeHandle) invokeCount(method string) int {
	n := 0
	for _, iv := range h.invokes {
		if iv.method == method {
			n++
		}
	}
	return n
}

// fakeHost hands out recording handles.
type fakeHost struct {
	handles []*fakeHandle
	fail    bool
}

func (h *fakeHost) CreateView(componentType string, viewID int64, params map[string]any) (HostHandle, error) {
	if h.fail {
		return nil, errors.New("toolkit unavailable")
	}
	handle := &fakeHandle{viewID: viewID}
	h.handles = append(h.handles, handle)
	return handle, nil
}

// recordingSink captures emitted framework events.
type recordingSink struct {
	events []sinkEvent
}

type sinkEvent struct {
	viewID  int64
	event   string
	payload map[string]any
}

func (s *recordingSink) DispatchEvent(viewID int64, event string, payload map[string]any) {
	s.events = append(s.events, sinkEvent{viewID: viewID, event: event, payload: payload})
}

func (s *recordingSink) eventNames() []string {
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.event
	}
	return names
}

func (s *recordingSink) count(event string) int {
	n := 0
	for _, e := range s.events {
		if e.event == event {
			n++
		}
	}
	return n
}

// last returns the payload of the most recent emission of event.
func (s *recordingSink) last(event string) map[string]any {
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].event == event {
			return s.events[i].payload
		}
	}
	return nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeHost, *recordingSink, *runloop.FakeClock) {
	t.Helper()
	host := &fakeHost{}
	sink := &recordingSink{}
	clock := runloop.NewFakeClock()
	reg := NewRegistry(Env{Host: host, Events: sink, Clock: clock})
	return reg, host, sink, clock
}

// failingFactory rejects every creation.
type failingFactory struct{}

func (failingFactory) ComponentType() string {
	return "broken"
}

func (failingFactory) Config() ViewConfig {
	return ViewConfig{Type: "broken"}
}

func (failingFactory) Create(env Env, viewID int64, handle HostHandle, params map[string]any) (Component, error) {
	return nil, errors.New("bad params")
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	scroll, err := reg.Create(ScrollViewType, nil)
	if err != nil {
		t.Fatalf("Create(scrollview) error: %v", err)
	}
	field, err := reg.Create(TextFieldType, nil)
	if err != nil {
		t.Fatalf("Create(textfield) error: %v", err)
	}

	if scroll.ViewID() != 1 || field.ViewID() != 2 {
		t.Errorf("view ids = %d, %d, want 1, 2", scroll.ViewID(), field.ViewID())
	}
	if reg.ComponentCount() != 2 {
		t.Errorf("ComponentCount = %d, want 2", reg.ComponentCount())
	}
	if got := reg.Component(1); got == nil || got.ComponentType() != ScrollViewType {
		t.Errorf("Component(1) = %v, want scroll view", got)
	}
}

func TestCreateUnknownTypeFails(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	_, err := reg.Create("hologram", nil)
	if !errors.Is(err, ErrComponentTypeNotFound) {
		t.Errorf("Create(hologram) error = %v, want ErrComponentTypeNotFound", err)
	}
}

func TestCreateHostFailure(t *testing.T) {
	reg, host, _, _ := newTestRegistry(t)
	host.fail = true

	if _, err := reg.Create(ScrollViewType, nil); err == nil {
		t.Fatal("expected error when the host cannot create the widget")
	}
	if reg.ComponentCount() != 0 {
		t.Errorf("ComponentCount = %d, want 0", reg.ComponentCount())
	}
}

func TestCreateFactoryFailureReleasesHandle(t *testing.T) {
	reg, host, _, _ := newTestRegistry(t)
	reg.RegisterFactory(failingFactory{})

	if _, err := reg.Create("broken", nil); err == nil {
		t.Fatal("expected factory error")
	}
	if len(host.handles) != 1 {
		t.Fatalf("host created %d handles, want 1", len(host.handles))
	}
	if host.handles[0].released != 1 {
		t.Errorf("handle released %d times, want 1", host.handles[0].released)
	}
	if reg.ComponentCount() != 0 {
		t.Errorf("ComponentCount = %d, want 0", reg.ComponentCount())
	}
}

func TestDisposeReleasesHandleOnce(t *testing.T) {
	reg, host, _, _ := newTestRegistry(t)

	component, err := reg.Create(ScrollViewType, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	reg.Dispose(component.ViewID())
	reg.Dispose(component.ViewID()) // unknown id now, ignored
	component.Dispose()             // direct second dispose is a no-op

	if host.handles[0].released != 1 {
		t.Errorf("handle released %d times, want 1", host.handles[0].released)
	}
	if reg.ComponentCount() != 0 {
		t.Errorf("ComponentCount = %d, want 0", reg.ComponentCount())
	}
}

func TestDisposeAll(t *testing.T) {
	reg, host, _, _ := newTestRegistry(t)

	if _, err := reg.Create(ScrollViewType, nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := reg.Create(TextFieldType, nil); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	reg.DisposeAll()

	if reg.ComponentCount() != 0 {
		t.Errorf("ComponentCount = %d, want 0", reg.ComponentCount())
	}
	for i, handle := range host.handles {
		if handle.released != 1 {
			t.Errorf("handle %d released %d times, want 1", i, handle.released)
		}
	}
}

func TestDeliverHostEventRoutes(t *testing.T) {
	reg, _, sink, _ := newTestRegistry(t)

	component, err := reg.Create(ScrollViewType, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	err = reg.DeliverHostEvent(component.ViewID(), "scroll", map[string]any{"x": 5.0, "y": 10.0})
	if err != nil {
		t.Fatalf("DeliverHostEvent error: %v", err)
	}

	if sink.count("onScroll") != 1 {
		t.Fatalf("onScroll count = %d, want 1", sink.count("onScroll"))
	}
	offset := sink.last("onScroll")["contentOffset"].(map[string]any)
	if offset["x"] != 5.0 || offset["y"] != 10.0 {
		t.Errorf("contentOffset = %v, want x=5 y=10", offset)
	}
}

func TestDeliverHostEventUnknownComponent(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)

	err := reg.DeliverHostEvent(42, "scroll", nil)
	if !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("DeliverHostEvent error = %v, want ErrComponentNotFound", err)
	}
}

// gaugeFactory is a custom component type for registry config tests.
type gaugeFactory struct{}

func (gaugeFactory) ComponentType() string {
	return "gauge"
}

func (gaugeFactory) Config() ViewConfig {
	return ViewConfig{
		Type:   "gauge",
		Props:  map[string]string{"level": "number"},
		Events: []string{"onLevelChange"},
	}
}

func (gaugeFactory) Create(env Env, viewID int64, handle HostHandle, params map[string]any) (Component, error) {
	return nil, errors.New("not constructible in this test")
}

func TestRegistryConfigsIncludeCustomFactories(t *testing.T) {
	reg, _, _, _ := newTestRegistry(t)
	reg.RegisterFactory(gaugeFactory{})

	configs := reg.Configs()
	gauge, ok := configs["gauge"]
	if !ok {
		t.Fatal("Configs() missing custom gauge type")
	}
	if gauge.Props["level"] != "number" {
		t.Errorf("gauge level prop = %q, want number", gauge.Props["level"])
	}
	if gauge.Props["frame"] != "rect" {
		t.Errorf("gauge frame prop = %q, want rect from base config", gauge.Props["frame"])
	}

	config, ok := reg.Config("gauge")
	if !ok || config.Events[len(config.Events)-1] != "onLevelChange" {
		t.Errorf("Config(gauge) = %+v, %v", config, ok)
	}
	if _, ok := reg.Config("hologram"); ok {
		t.Error("Config(hologram) should not exist")
	}
}
