package api

import (
	"net/http"

	"github.com/okian/inputreplay/internal/app"
)

// StatusProvider reports the orchestrator snapshot.
type StatusProvider interface {
	Status() app.Status
}

// StatusHandler handles status requests.
type StatusHandler struct {
	provider StatusProvider
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(provider StatusProvider) *StatusHandler {
	return &StatusHandler{provider: provider}
}

// HandleStatus handles GET /status requests.
func (h *StatusHandler) HandleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Status())
}
