package app

import "github.com/okian/inputreplay/internal/domain/model"

// EventView is the wire shape of one event for the HTTP API and CLI.
type EventView struct {
	Offset  float64 `json:"offset" yaml:"offset"`
	Kind    string  `json:"kind" yaml:"kind"`
	X       *int    `json:"x,omitempty" yaml:"x,omitempty"`
	Y       *int    `json:"y,omitempty" yaml:"y,omitempty"`
	Button  string  `json:"button,omitempty" yaml:"button,omitempty"`
	Pressed *bool   `json:"pressed,omitempty" yaml:"pressed,omitempty"`
	Key     string  `json:"key,omitempty" yaml:"key,omitempty"`
}

// SessionView is the wire shape of a session.
type SessionView struct {
	Name     string      `json:"name" yaml:"name"`
	Events   []EventView `json:"events" yaml:"events"`
	Count    int         `json:"count" yaml:"count"`
	Duration float64     `json:"duration_seconds" yaml:"duration_seconds"`
}

// NewSessionView converts s for presentation.
func NewSessionView(s model.Session) SessionView {
	v := SessionView{
		Name:     s.Name,
		Events:   make([]EventView, 0, s.Len()),
		Count:    s.Len(),
		Duration: s.Duration(),
	}
	for _, e := range s.Events {
		v.Events = append(v.Events, NewEventView(e))
	}
	return v
}

// NewEventView converts e for presentation.
func NewEventView(e model.InputEvent) EventView {
	v := EventView{Offset: e.Offset, Kind: e.Kind.String()}
	switch p := e.Payload.(type) {
	case model.PointerMove:
		v.X, v.Y = &p.X, &p.Y
	case model.PointerButton:
		v.X, v.Y = &p.X, &p.Y
		v.Button = p.Button.String()
		v.Pressed = &p.Pressed
	case model.Key:
		v.Key = p.Token
	}
	return v
}
