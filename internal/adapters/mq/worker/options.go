package worker

import (
	"github.com/okian/inputreplay/pkg/logger"
)

type settings struct {
	name   string
	logger logger.Logger
}

func newSettings(opts []Option) settings {
	s := settings{name: "worker"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	return s
}

// Option applies a configuration option to a worker or task.
type Option func(*settings)

// WithName sets the name used for identification, logging and metrics.
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
