package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestRunner(workers, depth int) *Runner {
	return NewRunner(workers, depth, slog.Default())
}

func TestTasksExecute(t *testing.T) {
	r := newTestRunner(2, 16)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		r.Enqueue(Task{
			Name: "count",
			Fn: func(context.Context) error {
				ran.Add(1)
				wg.Done()
				return nil
			},
		})
	}
	wg.Wait()
	cancel()
	r.Stop()

	if got := ran.Load(); got != 10 {
		t.Errorf("ran %d tasks, want 10", got)
	}
}

func TestPanicDoesNotKillWorkers(t *testing.T) {
	r := newTestRunner(1, 16)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	done := make(chan struct{})
	r.Enqueue(Task{Name: "boom", Fn: func(context.Context) error { panic("boom") }})
	r.Enqueue(Task{Name: "after", Fn: func(context.Context) error {
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
	cancel()
	r.Stop()
}

func TestTaskReceivesDeadline(t *testing.T) {
	r := newTestRunner(1, 4)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	got := make(chan bool, 1)
	r.Enqueue(Task{
		Name:    "deadline",
		Timeout: 50 * time.Millisecond,
		Fn: func(taskCtx context.Context) error {
			_, ok := taskCtx.Deadline()
			got <- ok
			return nil
		},
	})

	select {
	case ok := <-got:
		if !ok {
			t.Error("task context carries no deadline")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}
	cancel()
	r.Stop()
}

func TestEnqueueFullQueueDoesNotBlock(t *testing.T) {
	// No workers started: the queue fills and stays full.
	r := newTestRunner(1, 2)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			r.Enqueue(Task{Name: "noop", Fn: func(context.Context) error { return nil }})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	r := newTestRunner(2, 64)
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	var ran atomic.Int32
	for i := 0; i < 20; i++ {
		r.Enqueue(Task{
			Name: "drain",
			Fn: func(context.Context) error {
				time.Sleep(time.Millisecond)
				ran.Add(1)
				return nil
			},
		})
	}
	cancel()
	r.Stop()

	if got := ran.Load(); got == 0 {
		t.Error("no queued tasks ran before shutdown completed")
	}
}
