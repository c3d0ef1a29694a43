// Package queue provides the bounded FIFO that decouples input producers
// from the goroutine delivering their notifications.
package queue

import (
	"context"
	"sync"

	"github.com/okian/inputreplay/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 4096
	defaultName          = "queue"
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds an item to the queue.
	// Returns false if the queue is full or closed and the item was not enqueued.
	Enqueue(ctx context.Context, item T) bool

	// Dequeue returns a channel that will receive items in FIFO order.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued items.
	Len() int

	// Close gracefully shuts down the queue.
	// After closing, no new items can be enqueued; queued items are still delivered.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int
	name     string
	mu       sync.RWMutex
	closed   bool
}

var _ Queue[int] = (*InMemoryQueue[int])(nil)

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := config{capacity: defaultQueueCapacity, name: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := &InMemoryQueue[T]{
		items:    make(chan T, cfg.capacity),
		capacity: cfg.capacity,
		name:     cfg.name,
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds an item without blocking.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, item T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name, "closed")
		return false
	}
	if ctx.Err() != nil {
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return false
	}

	select {
	case q.items <- item:
		metrics.RecordQueueEnqueued(q.name, len(q.items))
		return true
	default:
		metrics.RecordQueueRejected(q.name, "full")
		return false
	}
}

// Dequeue returns a channel that will receive items as they become available.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for item := range q.items {
			select {
			case out <- item:
				metrics.UpdateQueueDepth(q.name, len(q.items))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	return len(q.items)
}

// Capacity returns the maximum number of queued items.
func (q *InMemoryQueue[T]) Capacity() int {
	return q.capacity
}

// Close stops accepting items. It is safe to call more than once.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
