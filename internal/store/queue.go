package store

import (
	"sync"

	"github.com/roach88/intellitodo/internal/task"
)

// note is one entry in the notification queue: either a commit carrying the
// results its subscribers saw, or a barrier that Settle waits on.
type note struct {
	seq     int64
	results []result
	barrier chan struct{}
}

// result is one subscription's query result as of a commit.
type result struct {
	sub   *Subscription
	tasks []task.Task
	err   error
}

// noteQueue is a thread-safe unbounded FIFO of notifications.
//
// Writers enqueue after commit without blocking, even when a subscriber
// callback is slow, and the notifier goroutine drains in order.
//
// The queue uses a channel for signaling so the notifier can wait without
// polling.
type noteQueue struct {
	mu     sync.Mutex
	notes  []note
	closed bool
	signal chan struct{} // Signals availability (buffered, size 1)
}

func newNoteQueue() *noteQueue {
	return &noteQueue{
		notes:  make([]note, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a note to the back of the queue.
// Returns false if the queue is closed.
func (q *noteQueue) Enqueue(n note) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.notes = append(q.notes, n)

	// Non-blocking - buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front note without blocking.
// Returns (note{}, false) if the queue is empty.
func (q *noteQueue) TryDequeue() (note, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.notes) == 0 {
		return note{}, false
	}

	n := q.notes[0]
	q.notes[0] = note{}
	if len(q.notes) == 1 {
		q.notes = q.notes[:0]
	} else {
		q.notes = q.notes[1:]
	}
	return n, true
}

// Wait returns a channel that signals when notes may be available.
// The channel is closed once the queue is closed.
func (q *noteQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *noteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.notes)
}

// Closed reports whether Close has been called.
func (q *noteQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more notes will be enqueued and wakes the notifier.
// Notes already queued are still drained.
func (q *noteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
