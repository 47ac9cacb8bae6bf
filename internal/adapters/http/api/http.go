// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/huecast/internal/domain/dedupe"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes an event to the ingest worker. queue.ErrFull signals
	// backpressure.
	Enqueue(ctx context.Context, e model.Event) error

	Predict(ctx context.Context, at time.Time) (types.Prediction, error)
	Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	eventsHandler  *EventsHandler
	predictHandler *PredictHandler
	samplesHandler *SamplesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		eventsHandler:  NewEventsHandler(deps),
		predictHandler: NewPredictHandler(deps),
		samplesHandler: NewSamplesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", MetricsHandler())
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/predict", MetricsMiddleware(s.predictHandler.HandlePredict, "predict"))
	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandleSamples, "samples"))
}

// eventRequest is the body of POST /events. State accepts "on", "off",
// "true", "false" or a JSON bool.
type eventRequest struct {
	EventID string          `json:"event_id"`
	TS      string          `json:"ts"`
	State   json.RawMessage `json:"state"`
}

func (e eventRequest) toEvent() (model.Event, error) {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return model.Event{}, errors.New("missing event_id")
	case strings.TrimSpace(e.TS) == "":
		return model.Event{}, errors.New("missing ts")
	case len(e.State) == 0:
		return model.Event{}, errors.New("missing state")
	}
	ts, err := time.Parse(time.RFC3339, e.TS)
	if err != nil {
		return model.Event{}, errors.New("invalid ts; must be RFC3339")
	}
	state, err := parseState(e.State)
	if err != nil {
		return model.Event{}, err
	}
	return model.Event{ID: e.EventID, Instant: ts, State: state}, nil
}

func parseState(raw json.RawMessage) (model.LightState, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return model.LightState(b), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.Off, errors.New("state must be a string or bool")
	}
	return model.ParseLightState(s)
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
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

// parseTime reads an optional RFC3339 query parameter.
func parseTime(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, errors.New("invalid " + name + "; must be RFC3339")
	}
	return t, nil
}
