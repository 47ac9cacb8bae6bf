package api

import (
	"net/http"
)

// SamplesHandler serves stored samples.
type SamplesHandler struct {
	deps Dependencies
}

// NewSamplesHandler creates a new samples handler.
func NewSamplesHandler(deps Dependencies) *SamplesHandler {
	return &SamplesHandler{deps: deps}
}

// HandleSamples handles GET /samples?from=RFC3339&to=RFC3339. Both bounds
// are optional; the window is half-open.
func (h *SamplesHandler) HandleSamples(w http.ResponseWriter, r *http.Request) {
	const op = "api.samples"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	from, err := parseTime(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	samples, err := h.deps.Samples(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", WrapKind(op, ErrInternal, err))
		return
	}
	writeJSON(w, http.StatusOK, samples)
}
