package containers

import (
	"sync"

	"github.com/spaghettifunk/frameforge/engine/core"
)

// BlockingQueue is a bounded FIFO whose consumers sleep on a condition
// variable while it is empty. Producers never block: TryPush fails when the
// queue is full.
type BlockingQueue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   *RingQueue[T]
	closed bool
}

func NewBlockingQueue[T any](capacity int) *BlockingQueue[T] {
	q := &BlockingQueue[T]{
		ring: NewRingQueue[T](capacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// TryPush enqueues v and wakes one waiting consumer.
func (q *BlockingQueue[T]) TryPush(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return core.ErrQueueClosed
	}
	if err := q.ring.Enqueue(v); err != nil {
		return err
	}
	q.cond.Signal()
	return nil
}

// Pop blocks until an element is available or the queue is closed. The
// boolean is false once the queue is closed and drained.
func (q *BlockingQueue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ring.IsEmpty() && !q.closed {
		q.cond.Wait()
	}
	if q.ring.IsEmpty() {
		var zero T
		return zero, false
	}
	v, _ := q.ring.Dequeue()
	return v, true
}

// Close wakes every consumer. Elements already queued can still be popped.
func (q *BlockingQueue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *BlockingQueue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ring.Len()
}
