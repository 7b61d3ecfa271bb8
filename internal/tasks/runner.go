// Package tasks runs remediation work under a concurrency bound. Each task
// is keyed so callers can query its status or cancel it; execution slots are
// gated by a weighted semaphore.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrTaskExists is returned when a key is submitted while a task with the
// same key is still pending or running.
var ErrTaskExists = errors.New("task already exists")

// Status describes the lifecycle of a submitted task.
type Status string

const (
	StatusNotFound  Status = "not_found"
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Fn is the unit of work a task executes. It must honor context
// cancellation.
type Fn func(ctx context.Context) error

type task struct {
	status Status
	err    error
	cancel context.CancelFunc
}

// Runner executes submitted tasks with at most limit running concurrently.
type Runner struct {
	logger *slog.Logger
	sem    *semaphore.Weighted

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup

	baseCtx context.Context
}

// NewRunner creates a runner allowing at most limit concurrent tasks. The
// base context bounds the lifetime of all tasks; cancelling it cancels
// everything still in flight.
func NewRunner(ctx context.Context, logger *slog.Logger, limit int64) *Runner {
	if limit <= 0 {
		limit = 1
	}
	return &Runner{
		logger:  logger,
		sem:     semaphore.NewWeighted(limit),
		tasks:   make(map[string]*task),
		baseCtx: ctx,
	}
}

// Submit registers a task under key and returns immediately. The work starts
// once a concurrency slot frees up. Submitting a key that is still pending
// or running fails; terminal keys are replaced.
func (r *Runner) Submit(key string, fn Fn) error {
	r.mu.Lock()
	if existing, ok := r.tasks[key]; ok {
		if existing.status == StatusPending || existing.status == StatusRunning {
			r.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrTaskExists, key)
		}
	}

	taskCtx, cancel := context.WithCancel(r.baseCtx)
	t := &task{status: StatusPending, cancel: cancel}
	r.tasks[key] = t
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(taskCtx, key, t, fn)
	return nil
}

func (r *Runner) run(ctx context.Context, key string, t *task, fn Fn) {
	defer r.wg.Done()
	defer t.cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.finish(key, t, err)
		return
	}
	defer r.sem.Release(1)

	r.mu.Lock()
	if t.status != StatusPending {
		// cancelled before the slot freed
		r.mu.Unlock()
		return
	}
	t.status = StatusRunning
	r.mu.Unlock()

	r.logger.Info("task started", "task", key)
	r.finish(key, t, fn(ctx))
}

func (r *Runner) finish(key string, t *task, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case errors.Is(err, context.Canceled):
		t.status = StatusCancelled
		t.err = err
		r.logger.Info("task cancelled", "task", key)
	case err != nil:
		t.status = StatusFailed
		t.err = err
		r.logger.Error("task failed", "task", key, "error", err)
	default:
		t.status = StatusCompleted
		r.logger.Info("task completed", "task", key)
	}
}

// Status reports the current status of the task under key.
func (r *Runner) Status(key string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[key]
	if !ok {
		return StatusNotFound
	}
	return t.status
}

// Err returns the terminal error of a failed or cancelled task, nil
// otherwise.
func (r *Runner) Err(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[key]; ok {
		return t.err
	}
	return nil
}

// Cancel requests cancellation of the task under key. Cancellation is
// cooperative; the task observes it through its context. Cancelling an
// unknown or finished task is a no-op returning false.
func (r *Runner) Cancel(key string) bool {
	r.mu.Lock()
	t, ok := r.tasks[key]
	if !ok || (t.status != StatusPending && t.status != StatusRunning) {
		r.mu.Unlock()
		return false
	}
	if t.status == StatusPending {
		t.status = StatusCancelled
		t.err = context.Canceled
	}
	cancel := t.cancel
	r.mu.Unlock()

	cancel()
	return true
}

// Wait blocks until every submitted task has reached a terminal status.
func (r *Runner) Wait() {
	r.wg.Wait()
}
