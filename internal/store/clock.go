package store

import "sync/atomic"

// Clock is a monotonic logical clock stamping committed mutations.
//
// Every commit gets a strictly increasing seq number. Notifications carry the
// seq of the commit that caused them, which makes delivery order checkable in
// tests independent of wall time.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// In practice only writers holding the store's write lock call Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
