package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrStorageIO       = errors.New("session storage failure")
	ErrInvalidName     = errors.New("invalid session name")
)
