// Package testevents drives a running inputreplay server end to end: it
// records a session of synthetic input through the HTTP API, verifies what
// was stored and optionally replays it.
package testevents

import "time"

// Config holds configuration for a drive run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Session    string        // Session name to record into
	NumEvents  int           // Number of notifications to generate
	BatchSize  int           // Notifications per POST /input
	Pace       time.Duration // Pause between batches; gives the recording real gaps
	Speed      float64       // Playback speed; zero skips playback
	Timeout    time.Duration // HTTP request and settle timeout
	OutputFile string        // Optional JSON dump of the generated events
}

// Event is one notification as POST /input accepts it.
type Event struct {
	Kind    string `json:"kind"`
	X       int    `json:"x,omitempty"`
	Y       int    `json:"y,omitempty"`
	Button  string `json:"button,omitempty"`
	Pressed bool   `json:"pressed,omitempty"`
	Key     string `json:"key,omitempty"`
}

func (e Event) pointer() bool {
	return e.Kind == "pointer_move" || e.Kind == "pointer_button"
}

// Stats holds run statistics.
type Stats struct {
	Session         string
	EventsGenerated int
	EventsSubmitted int
	EventsRecorded  int
	EventsReplayed  int
	PlaybackID      string
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}

// Wire shapes read back from the server.
type statusResponse struct {
	IsRecording    bool   `json:"is_recording"`
	IsPlaying      bool   `json:"is_playing"`
	EventsRecorded int    `json:"events_recorded"`
	Cursor         int    `json:"cursor"`
	PlaybackName   string `json:"playback_name"`
	PlaybackID     string `json:"playback_id"`
}

type recordingResponse struct {
	Stopped bool `json:"stopped"`
	Saved   bool `json:"saved"`
	Events  int  `json:"events"`
}

type playbackResponse struct {
	PlaybackID string `json:"playback_id"`
}

type sessionResponse struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Events []Event `json:"events"`
}
