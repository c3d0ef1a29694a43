package api

import (
	"context"
	"net/http"

	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/pkg/logger"
)

// PlaybackDependencies controls the player.
type PlaybackDependencies interface {
	StartPlayback(ctx context.Context, name string, speed float64) (string, error)
	StopPlayback(ctx context.Context) error
	Status() app.Status
}

// PlaybackHandler handles playback lifecycle requests.
type PlaybackHandler struct {
	deps         PlaybackDependencies
	defaultSpeed float64
	logger       logger.Logger
}

// NewPlaybackHandler creates a new playback handler.
func NewPlaybackHandler(deps PlaybackDependencies, defaultSpeed float64, l logger.Logger) *PlaybackHandler {
	return &PlaybackHandler{deps: deps, defaultSpeed: defaultSpeed, logger: l}
}

type startPlaybackRequest struct {
	Name string `json:"name"`
	// Speed is optional; zero or negative is rejected, absent means default.
	Speed *float64 `json:"speed"`
}

type startPlaybackResponse struct {
	Status     string  `json:"status"`
	PlaybackID string  `json:"playback_id"`
	Session    string  `json:"session"`
	Speed      float64 `json:"speed"`
}

// HandleStart handles POST /playback/start.
func (h *PlaybackHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_playback"
	var req startPlaybackRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op+": missing name", ErrBadRequest))
		return
	}
	speed := h.defaultSpeed
	if req.Speed != nil {
		speed = *req.Speed
	}

	id, err := h.deps.StartPlayback(r.Context(), req.Name, speed)
	if err != nil {
		logFailure(r.Context(), h.logger, op, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startPlaybackResponse{
		Status:     "playing",
		PlaybackID: id,
		Session:    req.Name,
		Speed:      speed,
	})
}

// HandleStop handles POST /playback/stop and returns the status after the
// run has been joined.
func (h *PlaybackHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_playback"
	if err := h.deps.StopPlayback(r.Context()); err != nil {
		logFailure(r.Context(), h.logger, op, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Status())
}
