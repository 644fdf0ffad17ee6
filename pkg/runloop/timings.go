package runloop

import (
	"sync"
	"time"
)

// TimingBuffer is a ring buffer of recent frame intervals, used by the
// devtools surface to report jitter without unbounded growth.
type TimingBuffer struct {
	mu       sync.RWMutex
	samples  []time.Duration
	index    int
	capacity int
	count    int
}

// NewTimingBuffer creates a TimingBuffer with the given capacity.
func NewTimingBuffer(capacity int) *TimingBuffer {
	if capacity <= 0 {
		capacity = 60
	}
	return &TimingBuffer{
		samples:  make([]time.Duration, capacity),
		capacity: capacity,
	}
}

// Add records one interval, evicting the oldest when full.
func (b *TimingBuffer) Add(interval time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.samples[b.index] = interval
	b.index = (b.index + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Samples returns a copy of the recorded intervals in chronological order.
func (b *TimingBuffer) Samples() []time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.count == 0 {
		return nil
	}

	result := make([]time.Duration, b.count)
	if b.count < b.capacity {
		copy(result, b.samples[:b.count])
	} else {
		// Buffer full: the oldest sample sits at b.index.
		copy(result, b.samples[b.index:])
		copy(result[b.capacity-b.index:], b.samples[:b.index])
	}
	return result
}

// Count returns the number of samples currently in the buffer.
func (b *TimingBuffer) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.count
}
