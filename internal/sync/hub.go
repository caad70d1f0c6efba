package sync

import (
	gosync "sync"
	"sync/atomic"
)

// Listener receives every state the engine publishes
type Listener func(SyncState)

type subscription struct {
	fn     Listener
	active atomic.Bool
}

// Hub is the observer registry for state changes. Listeners are notified
// synchronously in subscription order.
type Hub struct {
	mu   gosync.Mutex
	subs []*subscription
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers fn, invokes it once with current and returns a
// function that removes it. Calling the returned function more than once is
// harmless.
func (h *Hub) Subscribe(fn Listener, current SyncState) func() {
	sub := &subscription{fn: fn}
	sub.active.Store(true)

	h.mu.Lock()
	h.subs = append(h.subs, sub)
	h.mu.Unlock()

	fn(current.Clone())

	return func() {
		if !sub.active.CompareAndSwap(true, false) {
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s == sub {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers state to every active listener. Listeners removed while
// the notification is in progress are skipped; the others still run.
func (h *Hub) Publish(state SyncState) {
	h.mu.Lock()
	subs := make([]*subscription, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()

	for _, sub := range subs {
		if sub.active.Load() {
			sub.fn(state.Clone())
		}
	}
}

// Len returns the number of registered listeners
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
