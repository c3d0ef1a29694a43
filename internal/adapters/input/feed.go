// Package input holds programmatic implementations of the input
// capabilities: a Feed that acts as a capture source and a LogInjector
// that acts as a dry-run injection target.
package input

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/inputreplay/internal/adapters/mq/queue"
	"github.com/okian/inputreplay/internal/adapters/mq/worker"
	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
)

const (
	defaultFeedCapacity = 1024
	streamPointer       = "pointer"
	streamKeyboard      = "keyboard"
)

// Notification is one raw input notification pushed into a Feed.
type Notification struct {
	Kind    model.Kind
	Payload model.Payload

	barrier chan struct{}
}

// Validate checks that the payload matches the kind.
func (n Notification) Validate() error {
	_, err := model.New(0, n.Kind, n.Payload)
	return err
}

type pointerSub struct {
	id       uint64
	onMove   func(x, y int)
	onButton func(x, y int, button model.Button, pressed bool)
}

type keyboardSub struct {
	id     uint64
	onDown func(token string)
	onUp   func(token string)
}

// Feed is a capture.Source driven by Push calls. Pointer and keyboard
// notifications travel through separate queues, each drained by its own
// worker goroutine, so delivery is FIFO within a stream and unordered
// between streams.
type Feed struct {
	logger logger.Logger

	pointerQ  *queue.InMemoryQueue[Notification]
	keyboardQ *queue.InMemoryQueue[Notification]
	pointerW  *worker.InMemoryWorker[Notification]
	keyboardW *worker.InMemoryWorker[Notification]

	mu       sync.RWMutex
	nextID   uint64
	pointer  *pointerSub
	keyboard *keyboardSub
	closed   bool
}

var _ capture.Source = (*Feed)(nil)

// NewFeed creates a feed and starts its delivery workers. Call Close to
// stop them.
func NewFeed(opts ...FeedOption) *Feed {
	cfg := feedConfig{capacity: defaultFeedCapacity, logger: logger.Get()}
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &Feed{
		logger:    cfg.logger.Named("feed"),
		pointerQ:  queue.NewInMemoryQueue[Notification](queue.WithCapacity(cfg.capacity), queue.WithName("feed_pointer")),
		keyboardQ: queue.NewInMemoryQueue[Notification](queue.WithCapacity(cfg.capacity), queue.WithName("feed_keyboard")),
	}
	f.pointerW = worker.NewInMemoryWorker[Notification](f.pointerQ, f.deliverPointer,
		worker.WithName("feed-pointer"), worker.WithLogger(cfg.logger))
	f.keyboardW = worker.NewInMemoryWorker[Notification](f.keyboardQ, f.deliverKeyboard,
		worker.WithName("feed-keyboard"), worker.WithLogger(cfg.logger))

	// Workers run until their queue is closed and drained.
	go f.pointerW.Run(context.Background())
	go f.keyboardW.Run(context.Background())
	return f
}

// SubscribePointer registers the pointer callbacks. Only one pointer
// subscription may be active at a time.
func (f *Feed) SubscribePointer(onMove func(x, y int), onButton func(x, y int, button model.Button, pressed bool)) (capture.Unsubscribe, error) {
	if onMove == nil || onButton == nil {
		return nil, fmt.Errorf("subscribe pointer: %w", ErrNilCallback)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("subscribe pointer: %w", ErrFeedClosed)
	}
	if f.pointer != nil {
		return nil, fmt.Errorf("subscribe pointer: %w", ErrAlreadySubscribed)
	}
	f.nextID++
	sub := &pointerSub{id: f.nextID, onMove: onMove, onButton: onButton}
	f.pointer = sub

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.pointer != nil && f.pointer.id == sub.id {
			f.pointer = nil
		}
	}, nil
}

// SubscribeKeyboard registers the keyboard callbacks. Only one keyboard
// subscription may be active at a time.
func (f *Feed) SubscribeKeyboard(onDown, onUp func(token string)) (capture.Unsubscribe, error) {
	if onDown == nil || onUp == nil {
		return nil, fmt.Errorf("subscribe keyboard: %w", ErrNilCallback)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("subscribe keyboard: %w", ErrFeedClosed)
	}
	if f.keyboard != nil {
		return nil, fmt.Errorf("subscribe keyboard: %w", ErrAlreadySubscribed)
	}
	f.nextID++
	sub := &keyboardSub{id: f.nextID, onDown: onDown, onUp: onUp}
	f.keyboard = sub

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.keyboard != nil && f.keyboard.id == sub.id {
			f.keyboard = nil
		}
	}, nil
}

// Push enqueues a notification on its stream without blocking.
func (f *Feed) Push(ctx context.Context, n Notification) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return f.enqueue(ctx, n)
}

// PointerMove pushes a pointer motion notification.
func (f *Feed) PointerMove(ctx context.Context, x, y int) error {
	return f.Push(ctx, Notification{Kind: model.KindPointerMove, Payload: model.PointerMove{X: x, Y: y}})
}

// PointerButton pushes a pointer button notification.
func (f *Feed) PointerButton(ctx context.Context, x, y int, button model.Button, pressed bool) error {
	return f.Push(ctx, Notification{Kind: model.KindPointerButton, Payload: model.PointerButton{X: x, Y: y, Button: button, Pressed: pressed}})
}

// KeyDown pushes a key press notification.
func (f *Feed) KeyDown(ctx context.Context, token string) error {
	return f.Push(ctx, Notification{Kind: model.KindKeyDown, Payload: model.Key{Token: token}})
}

// KeyUp pushes a key release notification.
func (f *Feed) KeyUp(ctx context.Context, token string) error {
	return f.Push(ctx, Notification{Kind: model.KindKeyUp, Payload: model.Key{Token: token}})
}

// Sync waits until every notification pushed before the call has been
// delivered on both streams.
func (f *Feed) Sync(ctx context.Context) error {
	barriers := []Notification{
		{Kind: model.KindPointerMove, barrier: make(chan struct{})},
		{Kind: model.KindKeyDown, barrier: make(chan struct{})},
	}
	for _, b := range barriers {
		if err := f.enqueue(ctx, b); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
	}
	for _, b := range barriers {
		select {
		case <-b.barrier:
		case <-ctx.Done():
			return fmt.Errorf("sync: %w", ctx.Err())
		}
	}
	return nil
}

// Close stops accepting notifications, delivers what is queued and waits
// for both workers to exit.
func (f *Feed) Close(ctx context.Context) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	_ = f.pointerQ.Close()
	_ = f.keyboardQ.Close()

	if err := f.pointerW.Wait(ctx); err != nil {
		return fmt.Errorf("close feed: %w", err)
	}
	if err := f.keyboardW.Wait(ctx); err != nil {
		return fmt.Errorf("close feed: %w", err)
	}
	return nil
}

// Pending returns the number of queued notifications across both streams.
func (f *Feed) Pending() int {
	return f.pointerQ.Len() + f.keyboardQ.Len()
}

func (f *Feed) enqueue(ctx context.Context, n Notification) error {
	q, stream := f.keyboardQ, streamKeyboard
	if n.Kind == model.KindPointerMove || n.Kind == model.KindPointerButton {
		q, stream = f.pointerQ, streamPointer
	}
	if q.Enqueue(ctx, n) {
		return nil
	}
	if q.IsClosed() {
		return fmt.Errorf("%s stream: %w", stream, ErrFeedClosed)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s stream: %w", stream, err)
	}
	return fmt.Errorf("%s stream: %w", stream, ErrFeedFull)
}

func (f *Feed) deliverPointer(ctx context.Context, n Notification) error {
	if n.barrier != nil {
		close(n.barrier)
		return nil
	}
	f.mu.RLock()
	sub := f.pointer
	f.mu.RUnlock()
	if sub == nil {
		f.logger.Debug(ctx, "pointer notification without subscriber", logger.String("kind", n.Kind.String()))
		return nil
	}

	switch p := n.Payload.(type) {
	case model.PointerMove:
		sub.onMove(p.X, p.Y)
	case model.PointerButton:
		sub.onButton(p.X, p.Y, p.Button, p.Pressed)
	default:
		return fmt.Errorf("pointer stream: unexpected payload %T", n.Payload)
	}
	return nil
}

func (f *Feed) deliverKeyboard(ctx context.Context, n Notification) error {
	if n.barrier != nil {
		close(n.barrier)
		return nil
	}
	f.mu.RLock()
	sub := f.keyboard
	f.mu.RUnlock()
	if sub == nil {
		f.logger.Debug(ctx, "keyboard notification without subscriber", logger.String("kind", n.Kind.String()))
		return nil
	}

	k, ok := n.Payload.(model.Key)
	if !ok {
		return fmt.Errorf("keyboard stream: unexpected payload %T", n.Payload)
	}
	if n.Kind == model.KindKeyDown {
		sub.onDown(k.Token)
	} else {
		sub.onUp(k.Token)
	}
	return nil
}

type feedConfig struct {
	capacity int
	logger   logger.Logger
}

// FeedOption configures a Feed.
type FeedOption func(*feedConfig)

// WithCapacity bounds each stream's queue.
func WithCapacity(n int) FeedOption {
	return func(c *feedConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithFeedLogger sets a custom logger for the feed.
func WithFeedLogger(l logger.Logger) FeedOption {
	return func(c *feedConfig) {
		if l != nil {
			c.logger = l
		}
	}
}
