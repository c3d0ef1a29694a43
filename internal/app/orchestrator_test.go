package app_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// directSource keeps the callbacks so tests can fire them synchronously.
type directSource struct {
	mu     sync.Mutex
	onMove func(x, y int)
	onDown func(token string)
	onUp   func(token string)
}

func (d *directSource) SubscribePointer(onMove func(x, y int), _ func(x, y int, b model.Button, pressed bool)) (capture.Unsubscribe, error) {
	d.mu.Lock()
	d.onMove = onMove
	d.mu.Unlock()
	return func() {}, nil
}

func (d *directSource) SubscribeKeyboard(onDown, onUp func(token string)) (capture.Unsubscribe, error) {
	d.mu.Lock()
	d.onDown, d.onUp = onDown, onUp
	d.mu.Unlock()
	return func() {}, nil
}

type countingInjector struct{ calls atomic.Int64 }

func (c *countingInjector) MovePointer(int, int) error {
	c.calls.Add(1)
	return nil
}

func (c *countingInjector) SetButton(model.Button, bool) error {
	c.calls.Add(1)
	return nil
}

func (c *countingInjector) SendKey(string, bool) error {
	c.calls.Add(1)
	return nil
}

// gateSleeper blocks every wait until released or stopped.
type gateSleeper struct {
	entered chan struct{}
	once    sync.Once
}

func (g *gateSleeper) Sleep(done <-chan struct{}, _ time.Duration) bool {
	g.once.Do(func() { close(g.entered) })
	<-done
	return false
}

type failingStore struct {
	repository.Store
}

func (failingStore) Save(context.Context, model.Session) error {
	return repository.ErrStorageIO
}

func newStore(t *testing.T) repository.Store {
	s, err := repository.NewCSVStore(t.TempDir(), repository.WithLogger(logger.NewNop()))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return s
}

func TestOrchestratorRecording(t *testing.T) {
	Convey("Given an orchestrator", t, func() {
		ctx := context.Background()
		src := &directSource{}
		store := newStore(t)
		o := app.New(store, src, &countingInjector{}, app.WithLogger(logger.NewNop()))
		defer func() { _ = o.Close(ctx) }()

		Convey("When stopping without a recording", func() {
			res, err := o.StopRecording(ctx)

			Convey("Then it is a reported no-op", func() {
				So(err, ShouldBeNil)
				So(res.Stopped, ShouldBeFalse)
				again, err := o.StopRecording(ctx)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, res)
			})
		})

		Convey("When a recording captures events", func() {
			So(o.StartRecording(ctx, "rec"), ShouldBeNil)
			src.onMove(1, 2)
			src.onDown("a")
			src.onUp("a")

			st := o.Status()
			So(st.IsRecording, ShouldBeTrue)
			So(st.EventsRecorded, ShouldEqual, 3)
			So(st.RecordingName, ShouldEqual, "rec")

			res, err := o.StopRecording(ctx)

			Convey("Then it is saved and listed", func() {
				So(err, ShouldBeNil)
				So(res.Saved, ShouldBeTrue)
				So(res.Events, ShouldEqual, 3)
				names, err := o.ListSessions(ctx)
				So(err, ShouldBeNil)
				So(names, ShouldResemble, []string{"rec"})
				s, err := o.GetSession(ctx, "rec")
				So(err, ShouldBeNil)
				So(s.Len(), ShouldEqual, 3)
				So(o.Status().IsRecording, ShouldBeFalse)
			})

			Convey("Then it can be deleted once", func() {
				removed, err := o.DeleteSession(ctx, "rec")
				So(err, ShouldBeNil)
				So(removed, ShouldBeTrue)
				removed, err = o.DeleteSession(ctx, "rec")
				So(err, ShouldBeNil)
				So(removed, ShouldBeFalse)
			})
		})

		Convey("When a recording captures nothing", func() {
			So(o.StartRecording(ctx, "empty"), ShouldBeNil)
			res, err := o.StopRecording(ctx)

			Convey("Then nothing is persisted", func() {
				So(err, ShouldBeNil)
				So(res.Stopped, ShouldBeTrue)
				So(res.Saved, ShouldBeFalse)
				names, _ := o.ListSessions(ctx)
				So(names, ShouldBeEmpty)
			})
		})

		Convey("When recording twice", func() {
			So(o.StartRecording(ctx, "one"), ShouldBeNil)
			err := o.StartRecording(ctx, "two")

			Convey("Then the second start is rejected", func() {
				So(errors.Is(err, capture.ErrAlreadyRecording), ShouldBeTrue)
				So(o.Status().RecordingName, ShouldEqual, "one")
			})
		})

		Convey("When the name is unsafe", func() {
			err := o.StartRecording(ctx, "../etc")

			Convey("Then it is rejected before capture starts", func() {
				So(errors.Is(err, repository.ErrInvalidName), ShouldBeTrue)
				So(o.Status().IsRecording, ShouldBeFalse)
			})
		})
	})

	Convey("Given a store that fails to save", t, func() {
		ctx := context.Background()
		src := &directSource{}
		o := app.New(failingStore{Store: newStore(t)}, src, &countingInjector{}, app.WithLogger(logger.NewNop()))
		defer func() { _ = o.Close(ctx) }()

		So(o.StartRecording(ctx, "x"), ShouldBeNil)
		src.onDown("a")
		res, err := o.StopRecording(ctx)

		Convey("Then the storage error is surfaced and the recorder is idle", func() {
			So(errors.Is(err, repository.ErrStorageIO), ShouldBeTrue)
			So(res.Saved, ShouldBeFalse)
			So(o.Status().IsRecording, ShouldBeFalse)
		})
	})
}

func TestOrchestratorPlayback(t *testing.T) {
	Convey("Given a stored session", t, func() {
		ctx := context.Background()
		store := newStore(t)
		down, _ := model.NewKeyDown(0, "a")
		up, _ := model.NewKeyUp(5, "a")
		So(store.Save(ctx, model.Session{Name: "long", Events: []model.InputEvent{down, up}}), ShouldBeNil)

		inj := &countingInjector{}
		gate := &gateSleeper{entered: make(chan struct{})}
		o := app.New(store, &directSource{}, inj, app.WithSleeper(gate), app.WithLogger(logger.NewNop()))
		defer func() { _ = o.Close(ctx) }()

		Convey("When playback starts", func() {
			id, err := o.StartPlayback(ctx, "long", 2)
			So(err, ShouldBeNil)
			<-gate.entered

			Convey("Then status reflects the run", func() {
				st := o.Status()
				So(id, ShouldNotBeEmpty)
				So(st.IsPlaying, ShouldBeTrue)
				So(st.EventsLoaded, ShouldEqual, 2)
				So(st.Cursor, ShouldEqual, 1)
				So(st.Speed, ShouldEqual, 2.0)
				So(st.PlaybackName, ShouldEqual, "long")
				So(st.PlaybackID, ShouldEqual, id)
			})

			Convey("Then a second start is rejected", func() {
				_, err := o.StartPlayback(ctx, "long", 1)
				So(errors.Is(err, playback.ErrAlreadyPlaying), ShouldBeTrue)
			})

			Convey("Then stopping joins the task and is idempotent", func() {
				So(o.StopPlayback(ctx), ShouldBeNil)
				So(o.Status().IsPlaying, ShouldBeFalse)
				res, ok := o.LastPlayback()
				So(ok, ShouldBeTrue)
				So(res.Stopped, ShouldBeTrue)
				So(res.Cursor, ShouldEqual, 1)
				So(o.StopPlayback(ctx), ShouldBeNil)
				So(inj.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the session does not exist", func() {
			_, err := o.StartPlayback(ctx, "missing", 1)

			Convey("Then ErrSessionNotFound is returned", func() {
				So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
				So(o.Status().IsPlaying, ShouldBeFalse)
			})
		})

		Convey("When the speed is invalid", func() {
			_, err := o.StartPlayback(ctx, "long", 0)

			Convey("Then ErrInvalidSpeed is returned", func() {
				So(errors.Is(err, playback.ErrInvalidSpeed), ShouldBeTrue)
			})
		})

		Convey("When the orchestrator is closed", func() {
			So(o.Close(ctx), ShouldBeNil)
			_, err := o.StartPlayback(ctx, "long", 1)

			Convey("Then lifecycle operations fail", func() {
				So(errors.Is(err, app.ErrClosed), ShouldBeTrue)
				So(errors.Is(o.StartRecording(ctx, "x"), app.ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestOrchestratorFrames(t *testing.T) {
	Convey("Given a frame source", t, func() {
		ctx := context.Background()
		store := newStore(t)
		src := &directSource{}
		var captured atomic.Int64
		frames := app.FrameSourceFunc(func(context.Context) (model.Frame, error) {
			if captured.Add(1) == 2 {
				return model.Frame{}, errors.New("display gone")
			}
			return model.Frame{Data: []byte("png"), Ext: "png"}, nil
		})
		o := app.New(store, src, &countingInjector{},
			app.WithFrameSource(frames, 5*time.Millisecond),
			app.WithLogger(logger.NewNop()),
		)
		defer func() { _ = o.Close(ctx) }()

		So(o.StartRecording(ctx, "framed"), ShouldBeNil)
		src.onDown("a")
		deadline := time.Now().Add(2 * time.Second)
		for captured.Load() < 5 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		res, err := o.StopRecording(ctx)

		Convey("Then frames are sampled while recording, skipping failures", func() {
			So(err, ShouldBeNil)
			So(res.Saved, ShouldBeTrue)
			So(res.Frames, ShouldBeGreaterThanOrEqualTo, 3)
		})

		Convey("Then deleting the session removes its frames", func() {
			removed, err := o.DeleteSession(ctx, "framed")
			So(err, ShouldBeNil)
			So(removed, ShouldBeTrue)
			removed, err = o.DeleteSession(ctx, "framed")
			So(err, ShouldBeNil)
			So(removed, ShouldBeFalse)
		})
	})
}
