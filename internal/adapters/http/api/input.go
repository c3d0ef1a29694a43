package api

import (
	"fmt"
	"net/http"

	"github.com/okian/inputreplay/internal/adapters/input"
	"github.com/okian/inputreplay/internal/domain/model"
)

const maxBatch = 1024

// InputHandler pushes remote notifications into the capture feed.
type InputHandler struct {
	feed Feed
}

// NewInputHandler creates a new input handler.
func NewInputHandler(feed Feed) *InputHandler {
	return &InputHandler{feed: feed}
}

// notificationRequest is one raw input notification.
type notificationRequest struct {
	Kind    string `json:"kind"`
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
	Key     string `json:"key"`
}

func (n notificationRequest) toNotification() (input.Notification, error) {
	kind, err := model.ParseKind(n.Kind)
	if err != nil {
		return input.Notification{}, err
	}
	switch kind {
	case model.KindPointerMove:
		return input.Notification{Kind: kind, Payload: model.PointerMove{X: n.X, Y: n.Y}}, nil
	case model.KindPointerButton:
		b, err := model.ParseButton(n.Button)
		if err != nil {
			return input.Notification{}, err
		}
		return input.Notification{Kind: kind, Payload: model.PointerButton{X: n.X, Y: n.Y, Button: b, Pressed: n.Pressed}}, nil
	default:
		return input.Notification{Kind: kind, Payload: model.Key{Token: n.Key}}, nil
	}
}

type inputRequest struct {
	Events []notificationRequest `json:"events"`
}

type inputResponse struct {
	Accepted int `json:"accepted"`
}

// HandleInput handles POST /input. The batch is validated up front and
// pushed in order; a push failure reports how many were accepted before it.
func (h *InputHandler) HandleInput(w http.ResponseWriter, r *http.Request) {
	const op = "api.input"
	if h.feed == nil {
		writeDomainError(w, NewKind(op, ErrNoFeed))
		return
	}
	var req inputRequest
	if err := decodeBody(r, w, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Events) == 0 || len(req.Events) > maxBatch {
		writeError(w, http.StatusBadRequest, "bad_request",
			NewKind(fmt.Sprintf("%s: batch must hold 1..%d events", op, maxBatch), ErrBadRequest))
		return
	}

	batch := make([]input.Notification, 0, len(req.Events))
	for i, e := range req.Events {
		n, err := e.toNotification()
		if err != nil {
			writeDomainError(w, fmt.Errorf("%s: event %d: %w", op, i, err))
			return
		}
		if err := n.Validate(); err != nil {
			writeDomainError(w, fmt.Errorf("%s: event %d: %w", op, i, err))
			return
		}
		batch = append(batch, n)
	}

	for i, n := range batch {
		if err := h.feed.Push(r.Context(), n); err != nil {
			status, code := classify(err)
			writeJSON(w, status, struct {
				errorResponse
				Accepted int `json:"accepted"`
			}{errorResponse{Code: code, Message: err.Error()}, i})
			return
		}
	}
	writeJSON(w, http.StatusAccepted, inputResponse{Accepted: len(batch)})
}
