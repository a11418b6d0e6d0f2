package capture

import "sync/atomic"

// DefaultQueueCapacity sizes the event queue when no capacity is configured.
// Generous relative to expected write burst size: exhaustion should be rare,
// and when it happens events are dropped rather than writers blocked.
const DefaultQueueCapacity = 1024

// Queue is a bounded FIFO channel carrying change events from the database
// writer contexts to the single dispatcher. Producers never block: a full
// or closed queue rejects the send.
type Queue struct {
	ch      chan Event
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewQueue creates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ch: make(chan Event, capacity),
	}
}

// TrySend offers an event to the queue without blocking. It reports whether
// the event was accepted. This runs inline on the write path, so the only
// failure response is to decline.
func (q *Queue) TrySend(ev Event) bool {
	if q.closed.Load() {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- ev:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Events exposes the receive side. It is owned exclusively by the dispatcher.
func (q *Queue) Events() <-chan Event {
	return q.ch
}

// Close stops the queue from accepting new sends. Buffered events remain
// readable. The underlying channel is never closed, so racing producers
// cannot panic; they simply see the closed flag.
func (q *Queue) Close() {
	q.closed.Store(true)
}

// Len returns the number of buffered events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Cap returns the queue capacity.
func (q *Queue) Cap() int {
	return cap(q.ch)
}

// Dropped returns how many events were declined since creation.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
