package sync

import (
	gosync "sync"
	"time"
)

// Batcher coalesces change notifications under a debounce window. Every
// Enqueue restarts the window; the callback runs only after a full window
// passes without new changes. At most one timer is outstanding.
type Batcher struct {
	mu     gosync.Mutex
	delay  time.Duration
	queue  []ChangeInfo
	timer  *time.Timer
	gen    uint64
	onFire func()
}

// NewBatcher creates a batcher that calls onFire when the window elapses
func NewBatcher(delay time.Duration, onFire func()) *Batcher {
	return &Batcher{
		delay:  delay,
		onFire: onFire,
	}
}

// Enqueue appends a change and restarts the debounce timer. It returns the
// number of queued changes.
func (b *Batcher) Enqueue(change ChangeInfo) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.queue = append(b.queue, change)
	b.armLocked()
	return len(b.queue)
}

// CancelPending stops the timer without firing and keeps the queue. It
// reports whether a timer was pending.
func (b *Batcher) CancelPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stopLocked()
}

// Rearm restarts the timer when changes are still queued
func (b *Batcher) Rearm() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) > 0 {
		b.armLocked()
	}
}

// Take removes and returns the queued changes in arrival order
func (b *Batcher) Take() []ChangeInfo {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := b.queue
	b.queue = nil
	return batch
}

// Requeue puts a batch that could not be committed back in front of any
// changes that arrived since. The timer is left alone.
func (b *Batcher) Requeue(batch []ChangeInfo) {
	if len(batch) == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	queue := make([]ChangeInfo, 0, len(batch)+len(b.queue))
	queue = append(queue, batch...)
	b.queue = append(queue, b.queue...)
}

// Len returns the number of queued changes
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Pending reports whether a timer is armed
func (b *Batcher) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.timer != nil
}

func (b *Batcher) armLocked() {
	b.stopLocked()

	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.delay, func() {
		b.fire(gen)
	})
}

func (b *Batcher) stopLocked() bool {
	if b.timer == nil {
		return false
	}

	b.timer.Stop()
	b.timer = nil
	// A callback that already started sees a stale generation and returns
	b.gen++
	return true
}

func (b *Batcher) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.timer == nil {
		b.mu.Unlock()
		return
	}
	b.timer = nil
	b.mu.Unlock()

	if b.onFire != nil {
		b.onFire()
	}
}
