package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/roach88/intellitodo/internal/task"
)

// Subscription is a live query registered with Subscribe.
type Subscription struct {
	id     int
	filter task.Filter
	fn     func([]task.Task)
	closed atomic.Bool
	last   []task.Task // guarded by Store.subsMu
}

// Filter returns the view this subscription observes.
func (sub *Subscription) Filter() task.Filter {
	return sub.filter
}

// Close stops further deliveries. It is safe to call from inside the
// subscription's own callback and more than once.
func (sub *Subscription) Close() {
	sub.closed.Store(true)
}

// Subscribe registers a live query.
//
// fn is called once, synchronously, with the current result before Subscribe
// returns. After that it is called from the store's notifier goroutine with
// the result as of each committed mutation that changed it. Results are
// evaluated at commit time, so every commit is observed in commit order even
// when delivery lags, and an identical result is never delivered twice in a
// row.
//
// Deliveries to all subscriptions are serialized. fn may read and write the
// store and may Close any subscription, but must not call Subscribe or
// Settle.
func (s *Store) Subscribe(ctx context.Context, f task.Filter, fn func([]task.Task)) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("subscribe: nil callback")
	}
	if _, _, err := compileFilter(f, s.now(), s.loc); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	// Query and register with writes held off: commits before this point
	// are in the snapshot, commits after it evaluate the new subscription.
	s.writeMu.Lock()
	tasks, err := s.Query(ctx, f)
	if err != nil {
		s.writeMu.Unlock()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	s.regMu.Lock()
	s.nextID++
	sub := &Subscription{
		id:     s.nextID,
		filter: f,
		fn:     fn,
		last:   tasks,
	}
	s.subs = append(s.subs, sub)
	s.regMu.Unlock()
	s.writeMu.Unlock()

	fn(tasks)
	return sub, nil
}

// Settle blocks until every notification queued before the call has been
// delivered. Returns immediately once the store is closed.
func (s *Store) Settle(ctx context.Context) error {
	done := make(chan struct{})
	if !s.notes.Enqueue(note{barrier: done}) {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// changed records a commit and evaluates every live subscription against
// it. Callers must hold writeMu so that seq order equals commit order and no
// other commit lands between the write and the queries.
func (s *Store) changed() {
	seq := s.commits.Next()

	ctx := context.Background()
	live := s.liveSubs()
	results := make([]result, 0, len(live))
	for _, sub := range live {
		tasks, err := s.Query(ctx, sub.filter)
		results = append(results, result{sub: sub, tasks: tasks, err: err})
	}
	s.notes.Enqueue(note{seq: seq, results: results})
}

// liveSubs drops closed subscriptions from the registry and returns a copy of
// the rest.
func (s *Store) liveSubs() []*Subscription {
	s.regMu.Lock()
	defer s.regMu.Unlock()

	live := s.subs[:0]
	for _, sub := range s.subs {
		if !sub.closed.Load() {
			live = append(live, sub)
		}
	}
	clear(s.subs[len(live):])
	s.subs = live
	return slices.Clone(live)
}

// runNotifier is the single goroutine that delivers live-query results.
// It exits after the queue is closed and drained.
func (s *Store) runNotifier() {
	defer close(s.notifierDone)

	for {
		if n, ok := s.notes.TryDequeue(); ok {
			if n.barrier != nil {
				close(n.barrier)
				continue
			}
			s.deliver(n)
			continue
		}
		if s.notes.Closed() {
			return
		}
		<-s.notes.Wait()
	}
}

// deliver hands each subscription the result it had at commit n.seq.
func (s *Store) deliver(n note) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, r := range n.results {
		sub := r.sub
		if sub.closed.Load() {
			continue
		}
		if r.err != nil {
			s.log.Warn("live query failed", "subscription", sub.id, "filter", sub.filter, "seq", n.seq, "error", r.err)
			continue
		}
		if task.EqualSlices(r.tasks, sub.last) {
			continue
		}
		sub.last = r.tasks
		sub.fn(r.tasks)
	}
}
