package repository

import (
	"os"

	"github.com/okian/inputreplay/pkg/logger"
)

type options struct {
	logger   logger.Logger
	fileMode os.FileMode
	dirMode  os.FileMode
}

func defaultOptions(component string) options {
	return options{
		logger:   logger.Get().Named(component),
		fileMode: 0o644,
		dirMode:  0o755,
	}
}

// Option applies a configuration option to a Store implementation.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithFileMode sets the permission bits of written session and frame files.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}

// WithDirMode sets the permission bits used when creating the sessions directory.
func WithDirMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.dirMode = mode
		}
	}
}
