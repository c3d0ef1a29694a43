package api

import (
	"context"
	"net/http"

	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/internal/domain/model"
)

// SessionsDependencies defines the catalog operations.
type SessionsDependencies interface {
	ListSessions(ctx context.Context) ([]string, error)
	GetSession(ctx context.Context, name string) (model.Session, error)
	DeleteSession(ctx context.Context, name string) (bool, error)
}

// SessionsHandler serves the session catalog.
type SessionsHandler struct {
	deps SessionsDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionsDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type listResponse struct {
	Sessions []string `json:"sessions"`
}

// HandleList handles GET /sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	names, err := h.deps.ListSessions(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, listResponse{Sessions: names})
}

// HandleGet handles GET /sessions/{name}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, err := h.deps.GetSession(r.Context(), r.PathValue("name"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app.NewSessionView(s))
}

// HandleDelete handles DELETE /sessions/{name}. A missing session is 404.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	name := r.PathValue("name")
	removed, err := h.deps.DeleteSession(r.Context(), name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, repository.ErrSessionNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
