// Package scheduler runs post-commit background work: cache invalidation,
// event publication, and asynchronous AML analysis. Tasks are queued by the
// request path after the response is computed and executed on worker
// goroutines, each under its own deadline with panic isolation — a failing
// task never affects its siblings or subsequent requests.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default per-task deadlines.
const (
	CacheTimeout   = 2 * time.Second
	PublishTimeout = 5 * time.Second
	AnalyzeTimeout = 10 * time.Second
)

// Task is one unit of background work. Fn receives a context carrying the
// task deadline.
type Task struct {
	Name    string
	Timeout time.Duration
	Fn      func(ctx context.Context) error
}

// Runner executes queued tasks on a fixed pool of workers.
type Runner struct {
	queue   chan Task
	workers int
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewRunner creates a Runner with the given worker count and queue depth.
func NewRunner(workers, depth int, logger *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 4
	}
	if depth <= 0 {
		depth = 256
	}
	return &Runner{
		queue:   make(chan Task, depth),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker goroutines. Cancel ctx to begin shutdown; queued
// tasks are drained before the workers exit.
func (r *Runner) Start(ctx context.Context) {
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
	r.logger.Info("scheduler started", "workers", r.workers)
}

// Stop waits for in-flight tasks to finish. Call after cancelling the
// context passed to Start.
func (r *Runner) Stop() {
	close(r.queue)
	r.wg.Wait()
}

// Enqueue queues a task for execution. When the queue is full the task is
// dropped with a log line — background work is best-effort by contract and
// must never block the request path.
func (r *Runner) Enqueue(t Task) {
	if t.Timeout <= 0 {
		t.Timeout = PublishTimeout
	}
	select {
	case r.queue <- t:
	default:
		r.logger.Warn("scheduler: queue full, task dropped", "task", t.Name)
	}
}

func (r *Runner) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case t, ok := <-r.queue:
					if !ok {
						return
					}
					r.run(t)
				default:
					return
				}
			}
		case t, ok := <-r.queue:
			if !ok {
				return
			}
			r.run(t)
		}
	}
}

// run executes one task under its deadline with panic recovery.
func (r *Runner) run(t Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scheduler: panic recovered in task", "task", t.Name, "panic", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), t.Timeout)
	defer cancel()

	start := time.Now()
	if err := t.Fn(ctx); err != nil {
		r.logger.Warn("scheduler: task failed", "task", t.Name, "err", err,
			"elapsed", time.Since(start).Round(time.Millisecond))
		return
	}
	r.logger.Debug("scheduler: task done", "task", t.Name,
		"elapsed", time.Since(start).Round(time.Millisecond))
}
