package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			err := Init()

			Convey("Then Get returns a usable logger", func() {
				So(err, ShouldBeNil)
				So(Get(), ShouldNotBeNil)
				So(Sync(), ShouldBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := InitWithOptions(Options{Level: "info", Format: "xml"})

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})

		Convey("When initialized with an unknown level", func() {
			err := InitWithOptions(Options{Level: "loud"})

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithOptions(Options{Level: "debug", Format: "json", Output: &buf}), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When a named logger writes a record", func() {
			Named("player").Info(context.Background(), "event injected",
				String("session", "demo"),
				Int("cursor", 2),
				Bool("stopped", false),
				Duration("delay", 300*time.Millisecond),
			)

			Convey("Then the record carries component and fields", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "event injected")
				So(rec["component"], ShouldEqual, "player")
				So(rec["session"], ShouldEqual, "demo")
				So(rec["cursor"], ShouldEqual, 2.0)
				So(rec["source"], ShouldNotBeEmpty)
			})
		})

		Convey("When the level is raised above info", func() {
			So(SetLevelString("error"), ShouldBeNil)
			Get().Info(context.Background(), "hidden")

			Convey("Then nothing is written", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := NewNop()

		Convey("Then logging does not panic", func() {
			So(func() {
				l.Named("x").Error(context.Background(), "boom", Error(context.Canceled))
			}, ShouldNotPanic)
		})
	})
}
