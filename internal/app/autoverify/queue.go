package autoverify

import (
	"context"
	"log"
	"sync"

	"polyboard/internal/domain/model"
)

// Queue is the ordered set of solve ids awaiting autoverification. Producers
// enqueue from arbitrary goroutines; a single worker drains it with
// WaitForNext/PopNext. The head stays visible in Snapshot/IndexOf while it is
// being processed, because the worker only pops after it is done.
type Queue struct {
	mu    sync.Mutex
	items []model.SolveID
	wake  chan struct{}
}

func NewQueue() *Queue {
	return &Queue{wake: make(chan struct{}, 1)}
}

// Enqueue appends the solve id unless it is already queued anywhere in the
// queue. Re-enqueueing is a no-op that keeps the existing position.
func (q *Queue) Enqueue(id model.SolveID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, queued := range q.items {
		if queued == id {
			log.Printf("INFO: Solve %s is already queued for autoverification", id)
			return
		}
	}
	log.Printf("INFO: Enqueueing solve %s for autoverification", id)
	q.items = append(q.items, id)
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// IndexOf returns the current zero-based queue position of the solve id.
// Purely observational; the position may change as soon as the lock is
// released.
func (q *Queue) IndexOf(id model.SolveID) (int, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, queued := range q.items {
		if queued == id {
			return i, true
		}
	}
	return 0, false
}

// Snapshot returns a copy of the queue contents in FIFO order.
func (q *Queue) Snapshot() []model.SolveID {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.SolveID, len(q.items))
	copy(out, q.items)
	return out
}

// WaitForNext blocks until the queue is non-empty and returns the head
// element without removing it. Only a single consumer is supported.
func (q *Queue) WaitForNext(ctx context.Context) (model.SolveID, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			head := q.items[0]
			q.mu.Unlock()
			return head, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-q.wake:
		}
	}
}

// PopNext removes the current head unconditionally. The caller must have
// finished processing it.
func (q *Queue) PopNext() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}
