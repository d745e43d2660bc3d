package vdom

import "sync"

// event is work posted from outside the runtime goroutine.
// fn runs inside the effect context of scope.
type event struct {
	scope *Scope
	fn    func()
}

// eventQueue is a thread-safe FIFO queue for posted events.
//
// The queue is unbounded so scope tasks never block on a busy runtime.
// A buffered signal channel of size 1 coalesces wakeups for the Run loop.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds an event to the back of the queue.
// Returns false if the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}
	e := q.events[0]
	// Clear the slot so the closure can be collected.
	q.events[0] = event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return e, true
}

// Wait returns a channel that signals when events may be available.
// The channel is closed when the queue is closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close has been called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting events and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
