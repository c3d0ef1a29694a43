package input

import "errors"

// Sentinel kinds for input adapter errors.
var (
	ErrFeedClosed        = errors.New("input feed closed")
	ErrFeedFull          = errors.New("input feed queue full")
	ErrAlreadySubscribed = errors.New("stream already has a subscriber")
	ErrNilCallback       = errors.New("nil subscription callback")
	ErrUnknownKey        = errors.New("unknown key token")
)
