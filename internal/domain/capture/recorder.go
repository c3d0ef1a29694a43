// Package capture turns asynchronous input notifications into an ordered,
// timestamped session timeline.
package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
	"github.com/okian/inputreplay/pkg/metrics"
)

// Unsubscribe releases a subscription obtained from a Source.
type Unsubscribe func()

// Source is the OS input-subscription capability. Each stream delivers
// callbacks in FIFO order on its own goroutine; there is no ordering
// guarantee between the pointer and keyboard streams.
type Source interface {
	SubscribePointer(onMove func(x, y int), onButton func(x, y int, button model.Button, pressed bool)) (Unsubscribe, error)
	SubscribeKeyboard(onDown func(token string), onUp func(token string)) (Unsubscribe, error)
}

// recording is the state of an in-progress capture. It exists only between
// Start and Stop.
type recording struct {
	id     string
	name   string
	start  time.Time
	last   float64
	events []model.InputEvent
	unsubs []Unsubscribe
}

// Recorder is the capture pipeline. One Recorder records at most one
// session at a time.
type Recorder struct {
	source Source
	clock  func() time.Time
	logger logger.Logger

	// lifeMu serializes Start and Stop.
	lifeMu sync.Mutex

	// mu guards rec; every append happens under it so the merged timeline
	// is totally ordered by offset.
	mu  sync.Mutex
	rec *recording

	active atomic.Bool
	count  atomic.Int64
	name   atomic.Value // string
}

// NewRecorder creates a recorder reading from source.
func NewRecorder(source Source, opts ...Option) *Recorder {
	r := &Recorder{
		source: source,
		clock:  time.Now,
		logger: logger.Get().Named("recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.name.Store("")
	return r
}

// Start begins a new recording bound to sessionName and subscribes to both
// input streams. It fails with ErrAlreadyRecording while a recording is active.
func (r *Recorder) Start(ctx context.Context, sessionName string) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	if r.active.Load() {
		r.logger.Warn(ctx, "recording already active", logger.String("session", r.SessionName()))
		return fmt.Errorf("start %q: %w", sessionName, ErrAlreadyRecording)
	}
	if strings.TrimSpace(sessionName) == "" {
		return fmt.Errorf("start: %w: empty session name", model.ErrInvalidSession)
	}
	if r.source == nil {
		return fmt.Errorf("start %q: %w", sessionName, ErrNoSource)
	}

	rec := &recording{
		id:    uuid.NewString(),
		name:  sessionName,
		start: r.clock(),
	}

	r.mu.Lock()
	r.rec = rec
	r.count.Store(0)
	r.mu.Unlock()
	r.name.Store(sessionName)
	r.active.Store(true)

	// Subscriptions happen outside mu: a source may deliver synchronously.
	unsubPointer, err := r.source.SubscribePointer(r.OnPointerMove, r.OnPointerButton)
	if err != nil {
		r.teardown()
		r.logger.Error(ctx, "pointer subscription failed", logger.String("session", sessionName), logger.Error(err))
		return fmt.Errorf("start %q: subscribe pointer: %w", sessionName, err)
	}
	unsubKeyboard, err := r.source.SubscribeKeyboard(r.OnKeyDown, r.OnKeyUp)
	if err != nil {
		release(unsubPointer)
		r.teardown()
		r.logger.Error(ctx, "keyboard subscription failed", logger.String("session", sessionName), logger.Error(err))
		return fmt.Errorf("start %q: subscribe keyboard: %w", sessionName, err)
	}
	rec.unsubs = []Unsubscribe{unsubPointer, unsubKeyboard}

	metrics.RecordRecordingStarted()
	r.logger.Info(ctx, "recording started",
		logger.String("session", sessionName),
		logger.String("recording_id", rec.id),
	)
	return nil
}

// Stop releases both subscriptions and returns the sealed session. When no
// recording is active it reports false and an empty session.
func (r *Recorder) Stop(ctx context.Context) (model.Session, bool) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	rec := r.teardown()
	if rec == nil {
		r.logger.Info(ctx, "stop requested with no active recording")
		return model.Session{}, false
	}

	// Released outside mu so a delivery goroutine blocked on an append can finish.
	for _, unsub := range rec.unsubs {
		release(unsub)
	}

	session := model.Session{Name: rec.name, Events: rec.events}
	r.logger.Info(ctx, "recording stopped",
		logger.String("session", rec.name),
		logger.String("recording_id", rec.id),
		logger.Int("events", len(rec.events)),
		logger.Float64("duration_s", session.Duration()),
	)
	return session, true
}

// teardown detaches the current recording, if any, and returns it.
func (r *Recorder) teardown() *recording {
	r.mu.Lock()
	rec := r.rec
	r.rec = nil
	r.count.Store(0)
	r.mu.Unlock()
	r.active.Store(false)
	r.name.Store("")
	return rec
}

func release(unsub Unsubscribe) {
	if unsub != nil {
		unsub()
	}
}

// Active reports whether a recording is in progress.
func (r *Recorder) Active() bool { return r.active.Load() }

// Count returns the number of events appended to the active recording.
func (r *Recorder) Count() int { return int(r.count.Load()) }

// SessionName returns the name of the active recording or "".
func (r *Recorder) SessionName() string {
	name, _ := r.name.Load().(string)
	return name
}

// OnPointerMove is the pointer-motion callback.
func (r *Recorder) OnPointerMove(x, y int) {
	r.append(model.KindPointerMove, model.PointerMove{X: x, Y: y})
}

// OnPointerButton is the pointer-button callback.
func (r *Recorder) OnPointerButton(x, y int, button model.Button, pressed bool) {
	r.append(model.KindPointerButton, model.PointerButton{X: x, Y: y, Button: button, Pressed: pressed})
}

// OnKeyDown is the key-press callback.
func (r *Recorder) OnKeyDown(token string) {
	r.append(model.KindKeyDown, model.Key{Token: token})
}

// OnKeyUp is the key-release callback.
func (r *Recorder) OnKeyUp(token string) {
	r.append(model.KindKeyUp, model.Key{Token: token})
}

func (r *Recorder) append(kind model.Kind, payload model.Payload) {
	r.mu.Lock()
	rec := r.rec
	if rec == nil {
		r.mu.Unlock()
		metrics.RecordEventDropped()
		return
	}

	offset := r.clock().Sub(rec.start).Seconds()
	if offset < rec.last {
		// the wall clock stepped backwards; never let the timeline decrease
		offset = rec.last
	}
	event, err := model.New(offset, kind, payload)
	if err != nil {
		r.mu.Unlock()
		metrics.RecordEventDropped()
		r.logger.Warn(context.Background(), "dropping malformed input event", logger.Error(err))
		return
	}
	rec.events = append(rec.events, event)
	rec.last = offset
	r.count.Add(1)
	r.mu.Unlock()

	metrics.RecordEventCaptured(kind.String())
}
