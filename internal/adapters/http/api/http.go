// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/okian/inputreplay/internal/adapters/input"
	"github.com/okian/inputreplay/internal/adapters/repository"
	"github.com/okian/inputreplay/internal/app"
	"github.com/okian/inputreplay/internal/domain/capture"
	"github.com/okian/inputreplay/internal/domain/model"
	"github.com/okian/inputreplay/internal/domain/playback"
	"github.com/okian/inputreplay/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Controller is the orchestrator surface the handlers drive.
type Controller interface {
	StartRecording(ctx context.Context, name string) error
	StopRecording(ctx context.Context) (app.RecordingResult, error)
	StartPlayback(ctx context.Context, name string, speed float64) (string, error)
	StopPlayback(ctx context.Context) error
	Status() app.Status

	ListSessions(ctx context.Context) ([]string, error)
	GetSession(ctx context.Context, name string) (model.Session, error)
	DeleteSession(ctx context.Context, name string) (bool, error)
}

// Feed accepts remote input notifications.
type Feed interface {
	Push(ctx context.Context, n input.Notification) error
}

// Server wires HTTP routes for the control API.
type Server struct {
	healthHandler    *HealthHandler
	statusHandler    *StatusHandler
	sessionsHandler  *SessionsHandler
	recordingHandler *RecordingHandler
	playbackHandler  *PlaybackHandler
	inputHandler     *InputHandler
}

// NewServer creates a new API server with all handlers. feed may be nil,
// in which case POST /input answers 503.
func NewServer(ctrl Controller, feed Feed, opts ...Option) *Server {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:    NewHealthHandler(),
		statusHandler:    NewStatusHandler(ctrl),
		sessionsHandler:  NewSessionsHandler(ctrl),
		recordingHandler: NewRecordingHandler(ctrl, cfg.logger),
		playbackHandler:  NewPlaybackHandler(ctrl, cfg.defaultSpeed, cfg.logger),
		inputHandler:     NewInputHandler(feed),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)
	mux.HandleFunc("GET /status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	mux.HandleFunc("GET /sessions", MetricsMiddleware(s.sessionsHandler.HandleList, "sessions"))
	mux.HandleFunc("GET /sessions/{name}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
	mux.HandleFunc("DELETE /sessions/{name}", MetricsMiddleware(s.sessionsHandler.HandleDelete, "session"))

	mux.HandleFunc("POST /recording/start", MetricsMiddleware(s.recordingHandler.HandleStart, "recording_start"))
	mux.HandleFunc("POST /recording/stop", MetricsMiddleware(s.recordingHandler.HandleStop, "recording_stop"))
	mux.HandleFunc("POST /playback/start", MetricsMiddleware(s.playbackHandler.HandleStart, "playback_start"))
	mux.HandleFunc("POST /playback/stop", MetricsMiddleware(s.playbackHandler.HandleStop, "playback_stop"))

	mux.HandleFunc("POST /input", MetricsMiddleware(s.inputHandler.HandleInput, "input"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError maps a wrapped domain sentinel to its HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidName),
		errors.Is(err, model.ErrInvalidEvent),
		errors.Is(err, model.ErrInvalidSession),
		errors.Is(err, playback.ErrInvalidSpeed):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrSessionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, capture.ErrAlreadyRecording),
		errors.Is(err, playback.ErrAlreadyPlaying):
		return http.StatusConflict, "conflict"
	case errors.Is(err, input.ErrFeedFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, app.ErrClosed),
		errors.Is(err, input.ErrFeedClosed),
		errors.Is(err, ErrNoFeed):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, w http.ResponseWriter, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return WrapKind("decode body", ErrBadRequest, err)
	}
	return nil
}

func logFailure(ctx context.Context, l logger.Logger, op string, err error) {
	if status, _ := classify(err); status >= http.StatusInternalServerError {
		l.Error(ctx, op+" failed", logger.Error(err))
	}
}
