package runloop

import "time"

// Clock abstracts wall-clock access so schedulers can be tested
// without real time. The zero implementation is the system clock.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc schedules fn to run on the clock's own goroutine after d.
	// Callers that need loop affinity must marshal via Loop.Dispatch.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a pending AfterFunc callback.
// Stop and Reset follow the time.Timer contract.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// systemClock implements Clock using the real time package.
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemClock returns the Clock backed by real time.
func SystemClock() Clock {
	return systemClock{}
}

// EpochMillis converts t to milliseconds since the Unix epoch, the
// time base shared with the script runtime.
func EpochMillis(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}

// FromEpochMillis converts script-side epoch milliseconds back to a
// time, preserving fractional precision.
func FromEpochMillis(ms float64) time.Time {
	return time.Unix(0, int64(ms*float64(time.Millisecond)))
}
