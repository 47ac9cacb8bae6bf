package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/huecast/internal/adapters/mq/queue"
	"github.com/okian/huecast/pkg/metrics"
)

// EventsHandler handles event requests
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metrics.RecordEventRejected("bad_request")
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	event, err := req.toEvent()
	if err != nil {
		metrics.RecordEventRejected("bad_request")
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), event.ID) {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	if err := h.deps.Enqueue(r.Context(), event); err != nil {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), event.ID)
		if errors.Is(err, queue.ErrFull) {
			metrics.RecordEventRejected("backpressure")
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
			return
		}
		metrics.RecordEventRejected("unavailable")
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
