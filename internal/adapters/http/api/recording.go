package api

import (
	"context"
	"net/http"

	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/pkg/logger"
)

// RecordingDependencies controls the recorder.
type RecordingDependencies interface {
	StartRecording(ctx context.Context, name string) error
	StopRecording(ctx context.Context) (app.RecordingResult, error)
}

// RecordingHandler handles recording lifecycle requests.
type RecordingHandler struct {
	deps   RecordingDependencies
	logger logger.Logger
}

// NewRecordingHandler creates a new recording handler.
func NewRecordingHandler(deps RecordingDependencies, l logger.Logger) *RecordingHandler {
	return &RecordingHandler{deps: deps, logger: l}
}

type startRecordingRequest struct {
	Name string `json:"name"`
}

type startRecordingResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

// HandleStart handles POST /recording/start.
func (h *RecordingHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_recording"
	var req startRecordingRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	// StartRecording validates the name and fails on empty.
	if err := h.deps.StartRecording(r.Context(), req.Name); err != nil {
		logFailure(r.Context(), h.logger, op, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startRecordingResponse{Status: "recording", Session: req.Name})
}

// HandleStop handles POST /recording/stop. Stopping when idle is 200 with
// stopped false.
func (h *RecordingHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	const op = "api.stop_recording"
	res, err := h.deps.StopRecording(r.Context())
	if err != nil {
		logFailure(r.Context(), h.logger, op, err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
