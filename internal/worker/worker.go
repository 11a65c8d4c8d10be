// Package worker runs the pool of goroutines that drain the investigation
// queue and drive each task through the pipeline.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/guardian/internal/queue"
	"github.com/linnemanlabs/guardian/internal/telemetry"
)

// Runner executes one investigation task.
type Runner interface {
	Run(ctx context.Context, task *telemetry.InvestigationTask) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, task *telemetry.InvestigationTask) error

func (f RunnerFunc) Run(ctx context.Context, task *telemetry.InvestigationTask) error {
	return f(ctx, task)
}

// taskBackoff separates a transient dequeue failure from a hot error loop.
const taskBackoff = time.Second

// Pool consumes tasks from a queue with a fixed number of workers.
type Pool struct {
	queue   queue.Queue
	runner  Runner
	size    int
	logger  log.Logger
	metrics *Metrics
}

// NewPool creates a worker pool. size values below one are clamped to one.
func NewPool(q queue.Queue, runner Runner, size int, logger log.Logger, metrics *Metrics) *Pool {
	if logger == nil {
		logger = log.Nop()
	}
	if size < 1 {
		size = 1
	}
	return &Pool{
		queue:   q,
		runner:  runner,
		size:    size,
		logger:  logger,
		metrics: metrics,
	}
}

// Run blocks until ctx is cancelled or the queue is closed, then waits for
// in-flight tasks to finish.
func (p *Pool) Run(ctx context.Context) {
	p.logger.Info(ctx, "worker pool starting", "workers", p.size)

	var wg sync.WaitGroup
	wg.Add(p.size)
	for i := 0; i < p.size; i++ {
		go func(id int) {
			defer wg.Done()
			p.consume(ctx, id)
		}(i)
	}
	wg.Wait()

	p.logger.Info(ctx, "worker pool stopped")
}

func (p *Pool) consume(ctx context.Context, id int) {
	L := p.logger.With("worker", id)
	for {
		task, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			L.Error(ctx, err, "dequeue failed")
			p.metrics.incDequeueFailure()
			select {
			case <-ctx.Done():
				return
			case <-time.After(taskBackoff):
			}
			continue
		}

		start := time.Now()
		if err := p.runner.Run(ctx, task); err != nil {
			// Validation is the one failure class that rejects the whole
			// task. The task is dropped, not retried: a malformed task
			// stays malformed.
			L.Error(ctx, err, "task rejected", "task_id", task.ID)
			p.metrics.observeTask("rejected", time.Since(start))
			continue
		}
		p.metrics.observeTask("done", time.Since(start))
	}
}
