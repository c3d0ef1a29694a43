package app

import (
	"time"

	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
)

const defaultFrameInterval = 500 * time.Millisecond

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets a custom logger for the orchestrator and its components.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFrameSource enables frame sampling during recordings. A non-positive
// interval keeps the default.
func WithFrameSource(fs FrameSource, interval time.Duration) Option {
	return func(o *Orchestrator) {
		o.frames = fs
		if interval > 0 {
			o.frameInterval = interval
		}
	}
}

// WithKeyAliases sets the key-token alias table used during playback.
func WithKeyAliases(aliases map[string]string) Option {
	return func(o *Orchestrator) {
		o.playerOpts = append(o.playerOpts, playback.WithKeyAliases(aliases))
	}
}

// WithSleeper replaces the player's wait implementation.
func WithSleeper(s playback.Sleeper) Option {
	return func(o *Orchestrator) {
		o.playerOpts = append(o.playerOpts, playback.WithSleeper(s))
	}
}

// WithClock sets the recorder's clock.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		o.recorderOpts = append(o.recorderOpts, capture.WithClock(clock))
	}
}
