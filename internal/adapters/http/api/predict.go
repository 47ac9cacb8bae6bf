package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/okian/huecast/internal/domain/types"
)

// PredictHandler serves light state forecasts.
type PredictHandler struct {
	deps Dependencies
	now  func() time.Time
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps Dependencies) *PredictHandler {
	return &PredictHandler{deps: deps, now: time.Now}
}

// HandlePredict handles GET /predict?at=RFC3339. A missing at predicts now.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	at, err := parseTime(r, "at")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if at.IsZero() {
		at = h.now()
	}

	p, err := h.deps.Predict(r.Context(), at)
	switch {
	case errors.Is(err, types.ErrNoModel):
		writeError(w, http.StatusServiceUnavailable, "no_model", WrapKind(op, ErrUnavailable, err))
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
	default:
		writeJSON(w, http.StatusOK, p)
	}
}
