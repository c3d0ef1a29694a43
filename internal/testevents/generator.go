package testevents

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/okian/inputreplay/pkg/logger"
)

const (
	screenWidth  = 1920
	screenHeight = 1080
	stepMax      = 40
)

var keyTokens = []string{"a", "s", "d", "f", "enter", "space", "shift"} //nolint:gochecknoglobals // fixed vocabulary

// generateEvents builds n notifications following a wandering pointer path
// with periodic clicks and key taps. Presses are always followed by their
// release so the session leaves no button or key held.
func generateEvents(ctx context.Context, n int, stats *Stats) []Event {
	events := make([]Event, 0, n)
	x, y := screenWidth/2, screenHeight/2

	for len(events) < n {
		x = clamp(x+randomInt(2*stepMax+1)-stepMax, 0, screenWidth-1)
		y = clamp(y+randomInt(2*stepMax+1)-stepMax, 0, screenHeight-1)
		events = append(events, Event{Kind: "pointer_move", X: x, Y: y})

		switch randomInt(6) {
		case 0:
			button := "left"
			if randomInt(4) == 0 {
				button = "right"
			}
			events = append(events,
				Event{Kind: "pointer_button", X: x, Y: y, Button: button, Pressed: true},
				Event{Kind: "pointer_button", X: x, Y: y, Button: button, Pressed: false},
			)
		case 1:
			key := keyTokens[randomInt(len(keyTokens))]
			events = append(events,
				Event{Kind: "key_down", Key: key},
				Event{Kind: "key_up", Key: key},
			)
		}
	}
	// trimming may split a trailing press/release pair
	events = events[:n]
	if last := events[n-1]; last.Kind == "key_down" || (last.Kind == "pointer_button" && last.Pressed) {
		events[n-1] = Event{Kind: "pointer_move", X: x, Y: y}
	}

	stats.EventsGenerated = len(events)
	logger.Get().Info(ctx, "generated events", logger.Int("count", len(events)))
	return events
}

// randomInt returns a uniform int in [0, n).
func randomInt(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
