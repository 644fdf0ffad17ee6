package timing

import "github.com/go-strait/strait/pkg/bridge"

// ScriptModuleName is the script-side module that receives outbound
// timer notifications.
const ScriptModuleName = "timers"

// BridgeDispatcher implements Dispatcher by enqueueing calls on the
// bridge's outbound queue. Enqueueing never blocks and never executes
// script; delivery happens when the bridge drains.
type BridgeDispatcher struct {
	Bridge *bridge.Bridge
}

// CallTimers enqueues one callTimers batch carrying the ordered ids.
func (d BridgeDispatcher) CallTimers(ids []int64) {
	list := make([]any, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	d.Bridge.EnqueueCall(bridge.Call{
		Module: ScriptModuleName,
		Method: "callTimers",
		Args:   []any{list},
	})
}

// CallIdleCallbacks enqueues one callIdleCallbacks notification.
func (d BridgeDispatcher) CallIdleCallbacks(frameStartMS float64) {
	d.Bridge.EnqueueCall(bridge.Call{
		Module: ScriptModuleName,
		Method: "callIdleCallbacks",
		Args:   []any{frameStartMS},
	})
}
