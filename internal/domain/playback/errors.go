package playback

import "errors"

// Sentinel kinds for playback errors.
var (
	ErrInvalidSpeed     = errors.New("speed must be a positive finite number")
	ErrAlreadyPlaying   = errors.New("playback already in progress")
	ErrInjectionFailure = errors.New("input injection failed")
	ErrNoInjector       = errors.New("no injector configured")
)
