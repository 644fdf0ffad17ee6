package timing

import "time"

// timer is one scheduled script callback. The id is assigned by the
// script runtime and is opaque here; target is absolute in the
// subsystem clock's frame.
type timer struct {
	id       int64
	target   time.Time
	interval time.Duration
	repeats  bool
	seq      uint64
}

// registry holds the live timers, keyed by id. It is owned by the loop
// goroutine; no locking.
type registry struct {
	timers  map[int64]*timer
	nextSeq uint64
}

func newRegistry() *registry {
	return &registry{timers: make(map[int64]*timer)}
}

// insert adds t, replacing any live timer with the same id. The
// insertion sequence number breaks dispatch-order ties between timers
// sharing a target time.
func (r *registry) insert(t *timer) {
	r.nextSeq++
	t.seq = r.nextSeq
	r.timers[t.id] = t
}

// remove drops the timer with the given id. Unknown ids are a no-op.
func (r *registry) remove(id int64) {
	delete(r.timers, id)
}

func (r *registry) get(id int64) *timer {
	return r.timers[id]
}

func (r *registry) len() int {
	return len(r.timers)
}

func (r *registry) clear() {
	r.timers = make(map[int64]*timer)
}

// snapshot partitions the registry at now: timers due (target at or
// before now) and the earliest target among the rest. One pass, no
// retained state; callers re-snapshot every tick.
func (r *registry) snapshot(now time.Time) (due []*timer, next time.Time, hasNext bool) {
	for _, t := range r.timers {
		if !t.target.After(now) {
			due = append(due, t)
			continue
		}
		if !hasNext || t.target.Before(next) {
			next = t.target
			hasNext = true
		}
	}
	return due, next, hasNext
}
