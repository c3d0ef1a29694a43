package testevents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/okian/inputreplay/pkg/logger"
)

const pollInterval = 20 * time.Millisecond

// ErrNotSettled is returned when the server does not reach the expected
// state before the configured timeout.
var ErrNotSettled = errors.New("server did not settle")

// Run records a synthetic session through the API, verifies it and, when
// cfg.Speed is positive, replays it to completion.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	log := logger.Get()
	if cfg.NumEvents <= 0 {
		return nil, fmt.Errorf("num events must be positive, got %d", cfg.NumEvents)
	}
	if cfg.Session == "" {
		cfg.Session = "drive-" + uuid.NewString()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	stats := &Stats{Session: cfg.Session, StartTime: time.Now()}
	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting drive",
		logger.String("url", cfg.BaseURL),
		logger.String("session", cfg.Session),
		logger.Int("events", cfg.NumEvents),
		logger.Int("batch_size", cfg.BatchSize))

	// Step 1: Health check
	if err := client.do(ctx, http.MethodGet, "/healthz", nil, nil, http.StatusOK); err != nil {
		return nil, fmt.Errorf("health check: %w", err)
	}

	// Step 2: Generate
	events := generateEvents(ctx, cfg.NumEvents, stats)
	if cfg.OutputFile != "" {
		if err := saveEvents(events, cfg.OutputFile); err != nil {
			log.Warn(ctx, "failed to save events", logger.Error(err))
		}
	}

	// Step 3: Record
	if err := client.do(ctx, http.MethodPost, "/recording/start", map[string]string{"name": cfg.Session}, nil, http.StatusAccepted); err != nil {
		return nil, fmt.Errorf("start recording: %w", err)
	}
	if err := submitEvents(ctx, client, events, cfg.BatchSize, cfg.Pace, stats); err != nil {
		return nil, fmt.Errorf("submit events: %w", err)
	}
	if _, err := waitFor(ctx, client, cfg.Timeout, func(s statusResponse) bool {
		return s.EventsRecorded >= stats.EventsSubmitted
	}); err != nil {
		return nil, fmt.Errorf("wait for delivery: %w", err)
	}
	var rec recordingResponse
	if err := client.do(ctx, http.MethodPost, "/recording/stop", nil, &rec, http.StatusOK); err != nil {
		return nil, fmt.Errorf("stop recording: %w", err)
	}
	stats.EventsRecorded = rec.Events

	// Step 4: Verify
	var stored sessionResponse
	if err := client.do(ctx, http.MethodGet, "/sessions/"+cfg.Session, nil, &stored, http.StatusOK); err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	if err := verifySession(ctx, events, stored); err != nil {
		return stats, err
	}

	// Step 5: Replay
	if cfg.Speed > 0 {
		if err := replay(ctx, client, cfg, stats); err != nil {
			return stats, err
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayStats(ctx, stats)
	return stats, nil
}

func replay(ctx context.Context, client *HTTPClient, cfg Config, stats *Stats) error {
	body := map[string]any{"name": cfg.Session, "speed": cfg.Speed}
	var started playbackResponse
	if err := client.do(ctx, http.MethodPost, "/playback/start", body, &started, http.StatusAccepted); err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	stats.PlaybackID = started.PlaybackID

	final, err := waitFor(ctx, client, cfg.Timeout, func(s statusResponse) bool {
		return !s.IsPlaying || s.PlaybackID != started.PlaybackID
	})
	if err != nil {
		return fmt.Errorf("wait for playback: %w", err)
	}
	stats.EventsReplayed = final.Cursor
	return nil
}

// waitFor polls GET /status until done reports true or timeout elapses.
func waitFor(ctx context.Context, client *HTTPClient, timeout time.Duration, done func(statusResponse) bool) (statusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		var st statusResponse
		if err := client.do(ctx, http.MethodGet, "/status", nil, &st, http.StatusOK); err != nil {
			if ctx.Err() != nil {
				return st, fmt.Errorf("%w: %w", ErrNotSettled, ctx.Err())
			}
			return st, err
		}
		if done(st) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return st, fmt.Errorf("%w: %w", ErrNotSettled, ctx.Err())
		case <-ticker.C:
		}
	}
}

func saveEvents(events []Event, filename string) error {
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func displayStats(ctx context.Context, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "drive complete",
		logger.Duration("duration", stats.Duration),
		logger.Int("generated", stats.EventsGenerated),
		logger.Int("submitted", stats.EventsSubmitted),
		logger.Int("recorded", stats.EventsRecorded),
		logger.Int("replayed", stats.EventsReplayed),
		logger.String("playback_id", stats.PlaybackID))
}
