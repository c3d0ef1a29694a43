package api

import "github.com/okian/inputreplay/pkg/logger"

type options struct {
	defaultSpeed float64
	logger       logger.Logger
}

func defaultOptions() options {
	return options{defaultSpeed: 1.0, logger: logger.Get().Named("api")}
}

// Option configures a Server.
type Option func(*options)

// WithDefaultSpeed sets the speed used when a playback request omits it.
func WithDefaultSpeed(speed float64) Option {
	return func(o *options) {
		if speed > 0 {
			o.defaultSpeed = speed
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
