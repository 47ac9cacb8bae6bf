package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/pkg/logger"
)

// Stats counts submission outcomes.
type Stats struct {
	Submitted int
	Accepted  int
	Duplicate int
	Failed    int
	Duration  time.Duration
}

// Submitter posts events to a huecast service one at a time. Events are
// sent in order because the ingest worker rejects events that go back in
// time.
type Submitter struct {
	client  *http.Client
	baseURL string
	log     logger.Logger
}

// NewSubmitter creates a submitter for the service at baseURL.
func NewSubmitter(baseURL string, timeout time.Duration) *Submitter {
	return &Submitter{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     logger.Get().Named("simulate"),
	}
}

type eventBody struct {
	EventID string `json:"event_id"`
	TS      string `json:"ts"`
	State   string `json:"state"`
}

// Submit posts every event and returns the outcome counts. It stops early
// only when ctx is cancelled.
func (s *Submitter) Submit(ctx context.Context, events []model.Event) (Stats, error) {
	start := time.Now()
	var st Stats
	url := s.baseURL + "/events"
	for i, e := range events {
		if err := ctx.Err(); err != nil {
			st.Duration = time.Since(start)
			return st, fmt.Errorf("submitted %d of %d: %w", i, len(events), err)
		}
		st.Submitted++
		dup, err := s.post(ctx, url, e)
		switch {
		case err != nil:
			st.Failed++
			s.log.Warn(ctx, "event not accepted", logger.String("eventID", e.ID), logger.Error(err))
		case dup:
			st.Duplicate++
		default:
			st.Accepted++
		}
	}
	st.Duration = time.Since(start)
	s.log.Info(ctx, "events submitted",
		logger.Int("accepted", st.Accepted),
		logger.Int("duplicate", st.Duplicate),
		logger.Int("failed", st.Failed),
		logger.Duration("took", st.Duration))
	return st, nil
}

func (s *Submitter) post(ctx context.Context, url string, e model.Event) (duplicate bool, err error) {
	body, err := json.Marshal(eventBody{
		EventID: e.ID,
		TS:      e.UTC().Format(time.RFC3339),
		State:   e.State.String(),
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrSubmit, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read response: %w", ErrSubmit, err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted:
		return false, nil
	case http.StatusOK:
		return true, nil
	default:
		return false, fmt.Errorf("%w: status %d: %s", ErrSubmit, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
}
