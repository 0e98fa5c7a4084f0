// Package memory provides the bounded in-process queues that connect the
// crawl pipeline stages.
package memory

import (
	"context"
	"errors"
	"fmt"
)

// ErrStopped is returned by Dequeue once the stop sentinel has been observed.
var ErrStopped = errors.New("queue stopped")

type entry[T any] struct {
	item T
	stop bool
}

// Queue is a bounded FIFO with context-aware operations and a stop sentinel.
//
// The sentinel is re-broadcast: a consumer that dequeues it puts it back
// before returning ErrStopped, so every consumer in a pool of any size
// eventually observes it exactly once.
type Queue[T any] struct {
	ch chan entry[T]
}

// NewQueue constructs a queue with the provided capacity (minimum 1).
func NewQueue[T any](capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		ch: make(chan entry[T], capacity),
	}
}

// Enqueue pushes an item, blocking while the queue is full.
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	return q.put(ctx, entry[T]{item: item}, "enqueue")
}

// Stop enqueues the sentinel. Producers call it once, after their last item.
func (q *Queue[T]) Stop(ctx context.Context) error {
	return q.put(ctx, entry[T]{stop: true}, "stop")
}

// Dequeue pops the next item. It returns ErrStopped when the sentinel is
// reached, after handing the sentinel on to the next consumer.
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case e := <-q.ch:
		if !e.stop {
			return e.item, nil
		}
		if err := q.put(ctx, e, "rebroadcast"); err != nil {
			return zero, err
		}
		return zero, ErrStopped
	}
}

// Len reports the number of buffered entries, sentinel included.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

func (q *Queue[T]) put(ctx context.Context, e entry[T], op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s canceled: %w", op, ctx.Err())
	case q.ch <- e:
		return nil
	}
}
