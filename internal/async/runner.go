// Package async runs detached background tasks for request handlers.
package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrClosed is returned by Submit once Shutdown has begun.
var ErrClosed = errors.New("runner is shutting down")

// Task is a unit of background work. The context is not tied to any request.
type Task func(ctx context.Context)

// Submitter schedules tasks without waiting for them.
type Submitter interface {
	Submit(name string, task Task) error
}

// Runner starts one goroutine per submitted task. There is no cap on the
// number of tasks in flight and no way to cancel a task once started.
type Runner struct {
	logger *slog.Logger
	base   context.Context

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewRunner creates a Runner. Tasks receive a context derived from
// context.Background, so they outlive the request that submitted them.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, base: context.Background()}
}

// Submit starts task in its own goroutine and returns immediately.
func (r *Runner) Submit(name string, task Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		r.logger.Warn("task rejected: runner is shutting down", "task", name)
		return ErrClosed
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("task panicked", "task", name, "panic", rec)
			}
		}()

		task(r.base)
		r.logger.Debug("task finished", "task", name, "duration_ms", time.Since(start).Milliseconds())
	}()
	return nil
}

// Wait blocks until every task submitted so far has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones or ctx, whichever comes first.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); r.wg.Wait() }()

	select {
	case <-ctx.Done():
		r.logger.Warn("runner shutdown interrupted by context")
		return ctx.Err()
	case <-done:
		r.logger.Info("runner drained")
		return nil
	}
}
