package capture

import (
	"time"

	"github.com/okian/inputreplay/pkg/logger"
)

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithClock overrides the time source used to stamp offsets.
func WithClock(clock func() time.Time) Option {
	return func(r *Recorder) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the recorder.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}
