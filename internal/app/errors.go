package app

import "errors"

// ErrClosed is returned by lifecycle operations after Close.
var ErrClosed = errors.New("orchestrator closed")
