package ext

import (
	"context"
	"sync"

	"github.com/kolkov/tawk/internal/block"
)

// handoff is a single-slot queue between a background producer and the
// interpreter. The producer blocks while the slot is full; the consumer
// blocks while it is empty and the producer has not finished.
type handoff[T any] struct {
	mu     sync.Mutex
	full   bool
	val    T
	done   bool
	notify *block.Signal
}

func newHandoff[T any](notify *block.Signal) *handoff[T] {
	return &handoff[T]{notify: notify}
}

// put waits for the slot to be empty and fills it.
func (q *handoff[T]) put(ctx context.Context, v T) error {
	err := q.notify.Until(ctx, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.full {
			return false
		}
		q.val, q.full = v, true
		return true
	})
	if err != nil {
		return err
	}
	q.notify.Notify()
	return nil
}

// take waits for a value. It returns false once the producer has finished
// and the slot is empty.
func (q *handoff[T]) take(ctx context.Context) (T, bool, error) {
	var (
		v  T
		ok bool
	)
	err := q.notify.Until(ctx, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.full {
			v, ok = q.val, true
			var zero T
			q.val, q.full = zero, false
			return true
		}
		return q.done
	})
	if err != nil {
		return v, false, err
	}
	if ok {
		q.notify.Notify()
	}
	return v, ok, nil
}

// finish marks the producer as done.
func (q *handoff[T]) finish() {
	q.mu.Lock()
	q.done = true
	q.mu.Unlock()
	q.notify.Notify()
}

// ready reports whether take would return without blocking.
func (q *handoff[T]) ready() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.full || q.done
}

// pending reports whether a value is waiting in the slot.
func (q *handoff[T]) pending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.full
}

// finished reports whether the producer is done.
func (q *handoff[T]) finished() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.done
}

// drain empties the slot without waiting.
func (q *handoff[T]) drain() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	v, ok := q.val, q.full
	var zero T
	q.val, q.full = zero, false
	return v, ok
}
