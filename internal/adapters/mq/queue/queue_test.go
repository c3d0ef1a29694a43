package queue

import (
	"context"
	"testing"
	"time"
)

type note struct {
	stream string
	seq    int
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue[note](WithCapacity(2), WithName("test"))
	ctx := context.Background()

	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
	if c := q.Capacity(); c != 2 {
		t.Errorf("expected capacity 2, got %d", c)
	}

	if !q.Enqueue(ctx, note{stream: "pointer", seq: 1}) {
		t.Error("expected enqueue to succeed")
	}
	if l := q.Len(); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.seq != 1 || got.stream != "pointer" {
		t.Errorf("unexpected item %+v", got)
	}
	if l := q.Len(); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(2))
	ctx := context.Background()

	if !q.Enqueue(ctx, 1) || !q.Enqueue(ctx, 2) {
		t.Fatal("expected first two enqueues to succeed")
	}
	if q.Enqueue(ctx, 3) {
		t.Error("expected enqueue to fail when full")
	}
	if l := q.Len(); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, 1) {
		t.Error("expected enqueue to fail with a cancelled context")
	}
}

func TestInMemoryQueue_FIFO(t *testing.T) {
	const n = 500
	q := NewInMemoryQueue[int](WithCapacity(n))
	ctx := context.Background()

	for i := 0; i < n; i++ {
		if !q.Enqueue(ctx, i) {
			t.Fatalf("enqueue %d failed", i)
		}
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	want := 0
	for got := range q.Dequeue(ctx) {
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
		want++
	}
	if want != n {
		t.Errorf("expected %d items, got %d", n, want)
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	q := NewInMemoryQueue[int](WithCapacity(10))
	ctx := context.Background()

	if !q.Enqueue(ctx, 1) || !q.Enqueue(ctx, 2) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}

	if err := q.Close(); err != nil {
		t.Errorf("expected close to succeed, got error: %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Enqueue(ctx, 3) {
		t.Error("expected enqueue to fail after closing")
	}

	// queued items are still delivered, then the channel closes
	items := q.Dequeue(ctx)
	var drained []int
	timeout := time.After(time.Second)
	for {
		select {
		case v, ok := <-items:
			if !ok {
				if len(drained) != 2 {
					t.Errorf("expected 2 drained items, got %v", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got error: %v", err)
				}
				return
			}
			drained = append(drained, v)
		case <-timeout:
			t.Fatal("expected dequeue channel to be closed within timeout")
		}
	}
}
