// Package memqueue provides an in-process implementation of queue.Queue.
// Suitable for dev deployments and tests where the gateway and workers run
// in the same process.
package memqueue

import (
	"context"
	"errors"
	"sync"

	"github.com/linnemanlabs/guardian/internal/queue"
	"github.com/linnemanlabs/guardian/internal/telemetry"
)

const defaultCapacity = 256

// Queue is a bounded in-memory task queue.
type Queue struct {
	tasks chan *telemetry.InvestigationTask

	mu     sync.Mutex
	closed bool
}

// New creates an in-memory queue with the default capacity.
func New() *Queue {
	return &Queue{tasks: make(chan *telemetry.InvestigationTask, defaultCapacity)}
}

// Enqueue adds the task, failing fast when the queue is full or closed
// rather than blocking ingestion. The mutex is held across the send so a
// concurrent Close cannot close the channel mid-send; the send never blocks,
// so the critical section stays short.
func (q *Queue) Enqueue(ctx context.Context, task *telemetry.InvestigationTask) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return queue.ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.New("memqueue: full")
	}
}

// Dequeue blocks until a task is available, the queue is drained and closed,
// or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*telemetry.InvestigationTask, error) {
	select {
	case task, ok := <-q.tasks:
		if !ok {
			return nil, queue.ErrClosed
		}
		return task, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close marks the queue closed. Tasks already enqueued can still be drained.
func (q *Queue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	q.closed = true
	close(q.tasks)
	return nil
}
