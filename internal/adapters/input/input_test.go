package input_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/inputreplay/internal/adapters/input"
	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type sink struct {
	mu   sync.Mutex
	seen []string
}

func (s *sink) add(v string) {
	s.mu.Lock()
	s.seen = append(s.seen, v)
	s.mu.Unlock()
}

func (s *sink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func TestFeedDelivery(t *testing.T) {
	Convey("Given a feed with both streams subscribed", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		feed := input.NewFeed(input.WithFeedLogger(logger.NewNop()))
		defer func() { _ = feed.Close(ctx) }()

		pointer, keys := &sink{}, &sink{}
		unsubP, err := feed.SubscribePointer(
			func(x, y int) { pointer.add("move") },
			func(x, y int, b model.Button, pressed bool) { pointer.add("button:" + b.String()) },
		)
		So(err, ShouldBeNil)
		unsubK, err := feed.SubscribeKeyboard(
			func(token string) { keys.add("down:" + token) },
			func(token string) { keys.add("up:" + token) },
		)
		So(err, ShouldBeNil)

		Convey("When notifications are pushed", func() {
			So(feed.PointerMove(ctx, 1, 1), ShouldBeNil)
			So(feed.KeyDown(ctx, "a"), ShouldBeNil)
			So(feed.PointerButton(ctx, 1, 1, model.ButtonLeft, true), ShouldBeNil)
			So(feed.KeyUp(ctx, "a"), ShouldBeNil)
			So(feed.Sync(ctx), ShouldBeNil)

			Convey("Then each stream delivers in FIFO order", func() {
				So(pointer.snapshot(), ShouldResemble, []string{"move", "button:left"})
				So(keys.snapshot(), ShouldResemble, []string{"down:a", "up:a"})
				So(feed.Pending(), ShouldEqual, 0)
			})
		})

		Convey("When a stream is subscribed twice", func() {
			_, err := feed.SubscribePointer(func(int, int) {}, func(int, int, model.Button, bool) {})

			Convey("Then the second subscription is rejected", func() {
				So(errors.Is(err, input.ErrAlreadySubscribed), ShouldBeTrue)
			})
		})

		Convey("When unsubscribed", func() {
			unsubP()
			unsubK()
			So(feed.PointerMove(ctx, 2, 2), ShouldBeNil)
			So(feed.KeyDown(ctx, "b"), ShouldBeNil)
			So(feed.Sync(ctx), ShouldBeNil)

			Convey("Then no callbacks fire and resubscribing works", func() {
				So(pointer.snapshot(), ShouldBeEmpty)
				So(keys.snapshot(), ShouldBeEmpty)
				_, err := feed.SubscribeKeyboard(func(string) {}, func(string) {})
				So(err, ShouldBeNil)
			})
		})

		Convey("When an invalid notification is pushed", func() {
			err := feed.Push(ctx, input.Notification{Kind: model.KindKeyDown, Payload: model.PointerMove{}})

			Convey("Then it is rejected before queueing", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When the feed is closed", func() {
			So(feed.Close(ctx), ShouldBeNil)

			Convey("Then pushes and subscriptions fail", func() {
				So(errors.Is(feed.KeyDown(ctx, "a"), input.ErrFeedClosed), ShouldBeTrue)
				_, err := feed.SubscribeKeyboard(func(string) {}, func(string) {})
				So(errors.Is(err, input.ErrFeedClosed), ShouldBeTrue)
				So(feed.Close(ctx), ShouldBeNil)
			})
		})
	})
}

func TestFeedDrivesRecorder(t *testing.T) {
	Convey("Given a recorder fed by a feed", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		feed := input.NewFeed(input.WithFeedLogger(logger.NewNop()))
		defer func() { _ = feed.Close(ctx) }()
		rec := capture.NewRecorder(feed, capture.WithLogger(logger.NewNop()))

		So(rec.Start(ctx, "fed"), ShouldBeNil)
		for i := 0; i < 50; i++ {
			So(feed.PointerMove(ctx, i, i), ShouldBeNil)
			So(feed.KeyDown(ctx, "k"), ShouldBeNil)
		}
		So(feed.Sync(ctx), ShouldBeNil)
		session, ok := rec.Stop(ctx)

		Convey("Then every notification becomes an ordered event", func() {
			So(ok, ShouldBeTrue)
			So(session.Len(), ShouldEqual, 100)
			So(session.Validate(), ShouldBeNil)
		})

		Convey("Then the recorder released its subscriptions", func() {
			_, err := feed.SubscribePointer(func(int, int) {}, func(int, int, model.Button, bool) {})
			So(err, ShouldBeNil)
		})
	})
}

func TestLogInjector(t *testing.T) {
	Convey("Given a log injector", t, func() {
		Convey("When no vocabulary is set", func() {
			inj := input.NewLogInjector(logger.NewNop())

			Convey("Then every call is accepted", func() {
				So(inj.MovePointer(1, 2), ShouldBeNil)
				So(inj.SetButton(model.ButtonRight, true), ShouldBeNil)
				So(inj.SendKey("anything", true), ShouldBeNil)
				So(inj.Calls(), ShouldEqual, 3)
			})
		})

		Convey("When a vocabulary is set", func() {
			inj := input.NewLogInjector(logger.NewNop(), "a", "enter")

			Convey("Then unknown tokens fail", func() {
				So(inj.SendKey("enter", false), ShouldBeNil)
				So(errors.Is(inj.SendKey("Key.enter", true), input.ErrUnknownKey), ShouldBeTrue)
				So(inj.Calls(), ShouldEqual, 1)
			})
		})
	})
}
