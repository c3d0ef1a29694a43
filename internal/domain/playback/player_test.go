package playback_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type call struct {
	op      string
	x, y    int
	button  model.Button
	token   string
	pressed bool
}

type fakeInjector struct {
	mu     sync.Mutex
	calls  []call
	failAt int // 1-based call number that fails; 0 never
	panics bool
}

func (f *fakeInjector) record(c call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	if f.failAt == len(f.calls) {
		if f.panics {
			panic("injector exploded")
		}
		return fmt.Errorf("unknown key %q", c.token)
	}
	return nil
}

func (f *fakeInjector) MovePointer(x, y int) error {
	return f.record(call{op: "move", x: x, y: y})
}

func (f *fakeInjector) SetButton(button model.Button, pressed bool) error {
	return f.record(call{op: "button", button: button, pressed: pressed})
}

func (f *fakeInjector) SendKey(token string, pressed bool) error {
	return f.record(call{op: "key", token: token, pressed: pressed})
}

func (f *fakeInjector) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

// recordingSleeper returns immediately and remembers every requested wait.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(done <-chan struct{}, d time.Duration) bool {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	select {
	case <-done:
		return false
	default:
		return true
	}
}

func (s *recordingSleeper) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sum time.Duration
	for _, d := range s.delays {
		sum += d
	}
	return sum
}

// blockingSleeper parks until done closes and signals when it has parked.
type blockingSleeper struct {
	parked chan struct{}
	once   sync.Once
}

func (s *blockingSleeper) Sleep(done <-chan struct{}, _ time.Duration) bool {
	s.once.Do(func() { close(s.parked) })
	<-done
	return false
}

func ev(e model.InputEvent, err error) model.InputEvent {
	if err != nil {
		panic(err)
	}
	return e
}

func twoKeySession() model.Session {
	return model.Session{Name: "scale", Events: []model.InputEvent{
		ev(model.NewKeyDown(0, "a")),
		ev(model.NewKeyUp(2.0, "a")),
	}}
}

func TestPlayerTimingScale(t *testing.T) {
	Convey("Given a session with events at 0.0s and 2.0s", t, func() {
		inj := &fakeInjector{}

		for _, tc := range []struct {
			speed float64
			want  time.Duration
		}{
			{2.0, time.Second},
			{0.5, 4 * time.Second},
			{1.0, 2 * time.Second},
		} {
			Convey(fmt.Sprintf("When played at speed %v", tc.speed), func() {
				sleeper := &recordingSleeper{}
				p := playback.NewPlayer(inj, playback.WithSleeper(sleeper), playback.WithLogger(logger.NewNop()))
				So(p.Start(twoKeySession(), tc.speed), ShouldBeNil)
				res := p.Run(context.Background())

				Convey("Then the single wait is scaled by the speed", func() {
					So(sleeper.total(), ShouldEqual, tc.want)
					So(res.Emitted, ShouldEqual, 2)
					So(res.Stopped, ShouldBeFalse)
					So(p.State(), ShouldEqual, playback.StateIdle)
				})
			})
		}
	})
}

func TestPlayerSaturatesSlowSpeeds(t *testing.T) {
	Convey("Given a 2s gap played at a vanishingly small speed", t, func() {
		sleeper := &recordingSleeper{}
		p := playback.NewPlayer(&fakeInjector{}, playback.WithSleeper(sleeper), playback.WithLogger(logger.NewNop()))
		So(p.Start(twoKeySession(), 1e-12), ShouldBeNil)
		res := p.Run(context.Background())

		Convey("Then the wait is clamped to the longest duration instead of skipped", func() {
			So(sleeper.total(), ShouldEqual, time.Duration(math.MaxInt64))
			So(res.Emitted, ShouldEqual, 2)
		})
	})
}

func TestPlayerEndToEndOrder(t *testing.T) {
	Convey("Given the demo timeline", t, func() {
		session := model.Session{Name: "demo", Events: []model.InputEvent{
			ev(model.NewPointerMove(0.0, 10, 10)),
			ev(model.NewPointerButton(0.3, 10, 10, model.ButtonLeft, true)),
			ev(model.NewKeyDown(0.3, "a")),
			ev(model.NewKeyUp(0.4, "a")),
		}}
		inj := &fakeInjector{}
		sleeper := &recordingSleeper{}
		p := playback.NewPlayer(inj, playback.WithSleeper(sleeper), playback.WithLogger(logger.NewNop()))

		So(p.Start(session, 1.0), ShouldBeNil)
		res := p.Run(context.Background())

		Convey("Then the injector sees every call in stored order", func() {
			So(res.Emitted, ShouldEqual, 4)
			So(res.Cursor, ShouldEqual, 4)
			So(inj.snapshot(), ShouldResemble, []call{
				{op: "move", x: 10, y: 10},
				{op: "button", button: model.ButtonLeft, pressed: true},
				{op: "key", token: "a", pressed: true},
				{op: "key", token: "a", pressed: false},
			})
		})

		Convey("Then zero gaps are not waited on", func() {
			So(len(sleeper.delays), ShouldEqual, 2)
			So(sleeper.delays[0].Seconds(), ShouldAlmostEqual, 0.3, 1e-6)
			So(sleeper.delays[1].Seconds(), ShouldAlmostEqual, 0.1, 1e-6)
		})
	})
}

func TestPlayerPartialFailure(t *testing.T) {
	session := model.Session{Name: "partial", Events: []model.InputEvent{
		ev(model.NewKeyDown(0, "a")),
		ev(model.NewKeyDown(0.01, "bogus")),
		ev(model.NewKeyUp(0.02, "a")),
	}}

	Convey("Given an injector that fails on the second event", t, func() {
		inj := &fakeInjector{failAt: 2}
		p := playback.NewPlayer(inj, playback.WithSleeper(&recordingSleeper{}), playback.WithLogger(logger.NewNop()))
		So(p.Start(session, 1), ShouldBeNil)
		res := p.Run(context.Background())

		Convey("Then the other events are still emitted and the cursor reaches the end", func() {
			So(res.Emitted, ShouldEqual, 2)
			So(res.Failed, ShouldEqual, 1)
			So(res.Cursor, ShouldEqual, 3)
			So(len(inj.snapshot()), ShouldEqual, 3)
		})
	})

	Convey("Given an injector that panics on the second event", t, func() {
		inj := &fakeInjector{failAt: 2, panics: true}
		p := playback.NewPlayer(inj, playback.WithSleeper(&recordingSleeper{}), playback.WithLogger(logger.NewNop()))
		So(p.Start(session, 1), ShouldBeNil)

		var res playback.Result
		So(func() { res = p.Run(context.Background()) }, ShouldNotPanic)

		Convey("Then the panic is contained to that event", func() {
			So(res.Emitted, ShouldEqual, 2)
			So(res.Failed, ShouldEqual, 1)
			So(res.Cursor, ShouldEqual, 3)
		})
	})
}

func TestPlayerLifecycle(t *testing.T) {
	Convey("Given an idle player", t, func() {
		inj := &fakeInjector{}
		p := playback.NewPlayer(inj, playback.WithSleeper(&recordingSleeper{}), playback.WithLogger(logger.NewNop()))

		Convey("When stopped while idle", func() {
			Convey("Then it reports nothing to stop", func() {
				So(p.Stop(), ShouldBeFalse)
				So(p.Stop(), ShouldBeFalse)
				So(p.State(), ShouldEqual, playback.StateIdle)
			})
		})

		Convey("When started with an invalid speed", func() {
			Convey("Then it is rejected without a state change", func() {
				for _, speed := range []float64{0, -1, math.NaN(), math.Inf(1)} {
					err := p.Start(twoKeySession(), speed)
					So(errors.Is(err, playback.ErrInvalidSpeed), ShouldBeTrue)
				}
				So(p.State(), ShouldEqual, playback.StateIdle)
			})
		})

		Convey("When started twice", func() {
			So(p.Start(twoKeySession(), 1), ShouldBeNil)
			err := p.Start(twoKeySession(), 1)

			Convey("Then the second start fails with ErrAlreadyPlaying", func() {
				So(errors.Is(err, playback.ErrAlreadyPlaying), ShouldBeTrue)
				So(p.State(), ShouldEqual, playback.StatePlaying)
				So(p.Loaded(), ShouldEqual, 2)
				So(p.Speed(), ShouldEqual, 1.0)
				So(p.SessionName(), ShouldEqual, "scale")
			})
		})

		Convey("When run without a start", func() {
			res := p.Run(context.Background())

			Convey("Then nothing happens", func() {
				So(res, ShouldResemble, playback.Result{})
				So(inj.snapshot(), ShouldBeEmpty)
			})
		})

		Convey("When an empty session is played", func() {
			So(p.Start(model.Session{Name: "empty"}, 1), ShouldBeNil)
			res := p.Run(context.Background())

			Convey("Then it completes immediately", func() {
				So(res.Cursor, ShouldEqual, 0)
				So(res.Stopped, ShouldBeFalse)
				So(p.State(), ShouldEqual, playback.StateIdle)
			})
		})
	})

	Convey("Given a player without an injector", t, func() {
		p := playback.NewPlayer(nil, playback.WithLogger(logger.NewNop()))

		Convey("Then start fails", func() {
			So(errors.Is(p.Start(twoKeySession(), 1), playback.ErrNoInjector), ShouldBeTrue)
		})
	})
}

func TestPlayerCancellation(t *testing.T) {
	Convey("Given a playback parked in its first wait", t, func() {
		inj := &fakeInjector{}
		sleeper := &blockingSleeper{parked: make(chan struct{})}
		p := playback.NewPlayer(inj, playback.WithSleeper(sleeper), playback.WithLogger(logger.NewNop()))
		So(p.Start(twoKeySession(), 1), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		results := make(chan playback.Result, 1)
		go func() { results <- p.Run(ctx) }()
		<-sleeper.parked

		Convey("When Stop is called", func() {
			So(p.Stop(), ShouldBeTrue)
			res := <-results

			Convey("Then the loop exits at the wait and keeps its cursor", func() {
				So(res.Stopped, ShouldBeTrue)
				So(res.Cursor, ShouldEqual, 1)
				So(len(inj.snapshot()), ShouldEqual, 1)
				So(p.State(), ShouldEqual, playback.StateIdle)
				So(p.Cursor(), ShouldEqual, 1)
			})

			Convey("Then a second stop is a no-op", func() {
				So(p.Stop(), ShouldBeFalse)
			})
		})

		Convey("When the context is cancelled", func() {
			cancel()
			res := <-results

			Convey("Then the loop stops the same way", func() {
				So(res.Stopped, ShouldBeTrue)
				So(res.Cursor, ShouldEqual, 1)
			})
		})
	})
}

func TestPlayerKeyAliases(t *testing.T) {
	Convey("Given an alias table", t, func() {
		inj := &fakeInjector{}
		p := playback.NewPlayer(inj,
			playback.WithSleeper(&recordingSleeper{}),
			playback.WithKeyAliases(map[string]string{"Key.enter": "Return", "space": " "}),
			playback.WithLogger(logger.NewNop()),
		)
		session := model.Session{Name: "alias", Events: []model.InputEvent{
			ev(model.NewKeyDown(0, "Key.enter")),
			ev(model.NewKeyDown(0, "SPACE")),
			ev(model.NewKeyDown(0, "x")),
		}}
		So(p.Start(session, 1), ShouldBeNil)
		p.Run(context.Background())

		Convey("Then tokens are rewritten before injection", func() {
			calls := inj.snapshot()
			So(calls[0].token, ShouldEqual, "Return")
			So(calls[1].token, ShouldEqual, " ")
			So(calls[2].token, ShouldEqual, "x")
		})
	})
}

func TestTimerSleeper(t *testing.T) {
	Convey("Given the timer sleeper", t, func() {
		Convey("Then a short wait completes", func() {
			So(playback.TimerSleeper.Sleep(make(chan struct{}), time.Millisecond), ShouldBeTrue)
		})

		Convey("Then a closed done channel interrupts a long wait", func() {
			done := make(chan struct{})
			close(done)
			start := time.Now()
			So(playback.TimerSleeper.Sleep(done, time.Hour), ShouldBeFalse)
			So(time.Since(start), ShouldBeLessThan, time.Second)
		})
	})
}
