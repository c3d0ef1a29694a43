// Package worker runs the background loops of the engine: queue consumers
// that deliver input notifications and one-shot tasks such as a playback run.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

// Queue defines how workers receive items.
type Queue[T any] interface {
	Dequeue(ctx context.Context) <-chan T
}

// Handler processes one dequeued item.
type Handler[T any] func(ctx context.Context, item T) error

// Worker consumes a queue until it is closed, cancelled or shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker delivers queued items to a Handler, one at a time, in
// queue order.
type InMemoryWorker[T any] struct {
	queue  Queue[T]
	handle Handler[T]
	name   string

	// Shutdown control
	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker[T any](queue Queue[T], handle Handler[T], opts ...Option) *InMemoryWorker[T] {
	cfg := newSettings(opts)
	return &InMemoryWorker[T]{
		queue:    queue,
		handle:   handle,
		name:     cfg.name,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   cfg.logger.Named(cfg.name),
	}
}

// Run starts the worker loop. It returns once the queue channel closes,
// ctx is cancelled or Shutdown is called.
func (w *InMemoryWorker[T]) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case item, ok := <-items:
			if !ok {
				return
			}
			if err := w.process(ctx, item); err != nil {
				metrics.RecordWorkerError(w.name)
				w.logger.Error(ctx, "error processing item", logger.Error(err))
			}
		}
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker[T]) Done() <-chan struct{} { return w.done }

// Wait blocks until Run returns or ctx expires. Unlike Shutdown it lets
// the worker drain a closed queue.
func (w *InMemoryWorker[T]) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "wait timed out")
		return fmt.Errorf("wait for %s: %w", w.name, ctx.Err())
	}
}

// Shutdown signals the loop to stop and waits for it.
func (w *InMemoryWorker[T]) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process runs the handler, turning a panic into an error.
func (w *InMemoryWorker[T]) process(ctx context.Context, item T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handle(ctx, item)
}
