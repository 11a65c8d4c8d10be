package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/guardian/internal/queue/memqueue"
	"github.com/linnemanlabs/guardian/internal/telemetry"
)

func testTask(id string) *telemetry.InvestigationTask {
	return &telemetry.InvestigationTask{
		ID:             id,
		UserID:         "u-1",
		TriggerType:    telemetry.TriggerGlucoseDeclineSlope,
		TriggerAt:      time.Now(),
		CurrentGlucose: 4.8,
		CurrentHR:      92,
	}
}

type recordingRunner struct {
	mu    sync.Mutex
	seen  []string
	err   error
	calls chan struct{}
}

func newRecordingRunner(buf int) *recordingRunner {
	return &recordingRunner{calls: make(chan struct{}, buf)}
}

func (r *recordingRunner) Run(_ context.Context, task *telemetry.InvestigationTask) error {
	r.mu.Lock()
	r.seen = append(r.seen, task.ID)
	r.mu.Unlock()
	r.calls <- struct{}{}
	return r.err
}

func (r *recordingRunner) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func waitForCalls(t *testing.T, r *recordingRunner, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.calls:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for call %d of %d", i+1, n)
		}
	}
}

func TestPool_ProcessesEnqueuedTasks(t *testing.T) {
	t.Parallel()

	q := memqueue.New()
	runner := newRecordingRunner(8)
	pool := NewPool(q, runner, 2, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	for _, id := range []string{"t-1", "t-2", "t-3"} {
		if err := q.Enqueue(context.Background(), testTask(id)); err != nil {
			t.Fatalf("Enqueue(%s) = %v", id, err)
		}
	}

	waitForCalls(t, runner, 3)

	ids := runner.ids()
	if len(ids) != 3 {
		t.Fatalf("processed %d tasks, want 3", len(ids))
	}
	want := map[string]bool{"t-1": true, "t-2": true, "t-3": true}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected task id %q", id)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}

func TestPool_StopsWhenQueueClosed(t *testing.T) {
	t.Parallel()

	q := memqueue.New()
	runner := newRecordingRunner(4)
	pool := NewPool(q, runner, 1, nil, nil)

	if err := q.Enqueue(context.Background(), testTask("t-drain")); err != nil {
		t.Fatalf("Enqueue = %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("Close = %v", err)
	}

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after queue close")
	}

	ids := runner.ids()
	if len(ids) != 1 || ids[0] != "t-drain" {
		t.Fatalf("drained tasks = %v, want [t-drain]", ids)
	}
}

func TestPool_ContinuesAfterRunnerError(t *testing.T) {
	t.Parallel()

	q := memqueue.New()
	runner := newRecordingRunner(8)
	runner.err = xerrors.New("task: user_id is required")
	pool := NewPool(q, runner, 1, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	for _, id := range []string{"t-a", "t-b"} {
		if err := q.Enqueue(context.Background(), testTask(id)); err != nil {
			t.Fatalf("Enqueue(%s) = %v", id, err)
		}
	}

	waitForCalls(t, runner, 2)

	if ids := runner.ids(); len(ids) != 2 {
		t.Fatalf("processed %d tasks, want 2 despite errors", len(ids))
	}
}

func TestNewPool_ClampsSize(t *testing.T) {
	t.Parallel()

	pool := NewPool(memqueue.New(), newRecordingRunner(1), 0, nil, nil)
	if pool.size != 1 {
		t.Errorf("size = %d, want 1", pool.size)
	}
	pool = NewPool(memqueue.New(), newRecordingRunner(1), -5, nil, nil)
	if pool.size != 1 {
		t.Errorf("size = %d, want 1", pool.size)
	}
}

func TestRunnerFunc(t *testing.T) {
	t.Parallel()

	var got string
	f := RunnerFunc(func(_ context.Context, task *telemetry.InvestigationTask) error {
		got = task.ID
		return nil
	})
	if err := f.Run(context.Background(), testTask("t-42")); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got != "t-42" {
		t.Errorf("runner saw task %q, want t-42", got)
	}
}
