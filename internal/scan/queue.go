package scan

import (
	"context"
	"sync"
	"sync/atomic"
)

// queue is an unbounded FIFO handed to a bounded worker pool. Pushes
// never block; pops block until an item, cancellation or close. The
// queue must be unbounded because workers push follow-up tasks while
// holding a worker slot: a bounded queue would deadlock the moment it
// filled.
type queue[T any] struct {
	mu     sync.Mutex
	items  []T
	closed bool

	// signal wakes one waiting pop; capacity one so pushes never block.
	signal chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{signal: make(chan struct{}, 1)}
}

// push appends an item. Items pushed after close are dropped.
func (q *queue[T]) push(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest item, blocking until one is available. It
// returns false when the queue is closed and drained, or the context
// is cancelled.
func (q *queue[T]) pop(ctx context.Context) (T, bool) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// Re-arm for the next waiter.
				select {
				case q.signal <- struct{}{}:
				default:
				}
			}
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, false
		}

		// A closed signal channel also unblocks; the next iteration
		// observes the closed flag and drains whatever is left.
		select {
		case <-ctx.Done():
			return zero, false
		case <-q.signal:
		}
	}
}

// close wakes all waiters; queued items remain poppable.
func (q *queue[T]) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.signal)
}

// len reports the number of queued items.
func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pending counts tasks that have been submitted but not finished. The
// scan is drained when the count returns to zero; callers must add a
// child before marking its parent done, otherwise the count could dip
// to zero mid-scan.
type pending struct {
	n    atomic.Int64
	once sync.Once
	idle chan struct{}
}

func newPending() *pending {
	return &pending{idle: make(chan struct{})}
}

func (p *pending) add() {
	p.n.Add(1)
}

func (p *pending) done() {
	if p.n.Add(-1) == 0 {
		p.once.Do(func() { close(p.idle) })
	}
}

// drained is closed the first time the count reaches zero.
func (p *pending) drained() <-chan struct{} {
	return p.idle
}
