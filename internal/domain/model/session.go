package model

import (
	"fmt"
	"strings"
)

// Session is a named, ordered timeline of input events. Insertion order is
// the only order; a session is never re-sorted.
type Session struct {
	Name   string
	Events []InputEvent
}

// Len returns the number of events.
func (s Session) Len() int { return len(s.Events) }

// Duration returns the offset of the last event in seconds.
func (s Session) Duration() float64 {
	if len(s.Events) == 0 {
		return 0
	}
	return s.Events[len(s.Events)-1].Offset
}

// Validate checks the name, every event, and that offsets never decrease.
func (s Session) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: empty session name", ErrInvalidSession)
	}
	for i, e := range s.Events {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("%w: event %d: %w", ErrInvalidSession, i, err)
		}
		if i > 0 && e.Offset < s.Events[i-1].Offset {
			return fmt.Errorf("%w: event %d offset %g precedes %g", ErrInvalidSession, i, e.Offset, s.Events[i-1].Offset)
		}
	}
	return nil
}

// Equal reports whether both sessions have the same name and events in the same order.
func (s Session) Equal(other Session) bool {
	if s.Name != other.Name || len(s.Events) != len(other.Events) {
		return false
	}
	for i := range s.Events {
		if s.Events[i] != other.Events[i] {
			return false
		}
	}
	return true
}

// Frame is an opaque auxiliary capture (typically a screenshot) stored
// alongside a session.
type Frame struct {
	Data []byte
	// Ext is the file extension without the dot, e.g. "png". Optional.
	Ext string
}
