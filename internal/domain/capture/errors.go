package capture

import "errors"

// Sentinel kinds for capture errors.
var (
	ErrAlreadyRecording = errors.New("recording already active")
	ErrNoSource         = errors.New("no input source configured")
)
