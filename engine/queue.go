package engine

import (
	"time"
)

// queue is a fixed-capacity FIFO with non-blocking producers. On overflow
// the OLDEST item is evicted to make room, so the newest item is always
// accepted and freshness wins over completeness on every path. Evicted items
// are handed to onDrop so frame Mats can be released.
//
// One producer and one consumer per queue; that is all the engine needs.
type queue[T any] struct {
	c      chan T
	onDrop func(T)
}

func newQueue[T any](capacity int, onDrop func(T)) *queue[T] {
	return &queue[T]{
		c:      make(chan T, capacity),
		onDrop: onDrop,
	}
}

// put enqueues v without ever blocking. Full queue: evict the head, retry.
func (q *queue[T]) put(v T) {
	for {
		select {
		case q.c <- v:
			return
		default:
		}
		select {
		case old := <-q.c:
			if q.onDrop != nil {
				q.onDrop(old)
			}
		default:
			// Consumer raced us to the head; room exists now.
		}
	}
}

// tryGet dequeues without blocking.
func (q *queue[T]) tryGet() (T, bool) {
	select {
	case v := <-q.c:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// getWait dequeues, waiting up to d. A false return is a timeout, which is
// the worker's cancellation check point.
func (q *queue[T]) getWait(d time.Duration) (T, bool) {
	select {
	case v := <-q.c:
		return v, true
	default:
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case v := <-q.c:
		return v, true
	case <-t.C:
		var zero T
		return zero, false
	}
}

// drain empties the queue through onDrop. Called once both loops have
// stopped, so no producer is racing the drain.
func (q *queue[T]) drain() {
	for {
		select {
		case v := <-q.c:
			if q.onDrop != nil {
				q.onDrop(v)
			}
		default:
			return
		}
	}
}

func (q *queue[T]) len() int {
	return len(q.c)
}
