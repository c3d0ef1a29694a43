package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

// ErrTaskPanicked wraps a panic recovered from a task function.
var ErrTaskPanicked = errors.New("task panicked")

// Task is a handle on one background goroutine. The owner cancels it and
// joins it; nothing is left running once Shutdown returns nil.
type Task struct {
	name   string
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	logger logger.Logger
}

// Go starts fn on its own goroutine with a context derived from ctx.
func Go(ctx context.Context, fn func(ctx context.Context) error, opts ...Option) *Task {
	cfg := newSettings(opts)
	taskCtx, cancel := context.WithCancel(ctx)
	t := &Task{
		name:   cfg.name,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: cfg.logger.Named(cfg.name),
	}

	metrics.UpdateTasksActive(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				t.err = fmt.Errorf("%w: %s: %v", ErrTaskPanicked, t.name, r)
				metrics.RecordWorkerError(t.name)
				t.logger.Error(taskCtx, "task panicked", logger.Any("panic", r))
			}
			metrics.UpdateTasksActive(-1)
			cancel()
			close(t.done)
		}()
		t.err = fn(taskCtx)
	}()
	return t
}

// Name returns the task name.
func (t *Task) Name() string { return t.name }

// Done is closed when the task function has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel cancels the task's context without waiting.
func (t *Task) Cancel() { t.cancel() }

// Wait blocks until the task returns or ctx expires and reports the task's error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		t.logger.Warn(ctx, "wait timed out")
		return fmt.Errorf("wait for %s: %w", t.name, ctx.Err())
	}
}

// Shutdown cancels the task and joins it.
func (t *Task) Shutdown(ctx context.Context) error {
	t.cancel()
	err := t.Wait(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		// cancellation we asked for is a clean exit
		return nil
	}
	return err
}
