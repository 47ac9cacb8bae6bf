// Package jobs implements the batch commands: reading events from the
// bridge log, a CSV file or the simulator into the sample store, and
// training and evaluating networks on stored samples.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/domain/resample"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// Range is an inclusive span of whole UTC days. A zero bound is open.
type Range struct {
	From, To time.Time
}

// ParseRange parses YYYY-MM-DD bounds. Empty strings leave the bound open.
func ParseRange(from, to string) (Range, error) {
	var r Range
	var err error
	if r.From, err = parseDate(from); err != nil {
		return Range{}, err
	}
	if r.To, err = parseDate(to); err != nil {
		return Range{}, err
	}
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return Range{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to, from)
	}
	return r, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidRange, s)
	}
	return t, nil
}

// Window returns the half-open instant window covering the range.
func (r Range) Window() (from, to time.Time) {
	from = r.From
	if !r.To.IsZero() {
		to = r.To.AddDate(0, 0, 1)
	}
	return from, to
}

// Contains reports whether t falls on a day inside the range.
func (r Range) Contains(t time.Time) bool {
	from, to := r.Window()
	t = t.UTC()
	return (from.IsZero() || !t.Before(from)) && (to.IsZero() || t.Before(to))
}

// Saver is the part of the sample store the ingest jobs write to.
type Saver interface {
	SaveSamples(ctx context.Context, samples []model.Sample) error
}

// Loader is the part of the sample store the model jobs read from.
type Loader interface {
	Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error)
}

// IngestResult counts what an ingest job did.
type IngestResult struct {
	Events  int
	Skipped int
	Samples int
}

const defaultBatch = 500

// pipeline feeds ordered events through a resampler and saves the
// samples in batches.
type pipeline struct {
	r     *resample.Resampler
	store Saver
	log   logger.Logger
	batch []model.Sample
	last  time.Time
	res   IngestResult
}

func newPipeline(store Saver, interval time.Duration, log logger.Logger) *pipeline {
	return &pipeline{
		r:     resample.New(resample.WithInterval(interval)),
		store: store,
		log:   log,
		batch: make([]model.Sample, 0, defaultBatch),
	}
}

// add applies e. Events before the previous one are skipped.
func (p *pipeline) add(ctx context.Context, e model.Event) error {
	if !p.last.IsZero() && e.UTC().Before(p.last) {
		p.res.Skipped++
		metrics.RecordEventRejected("out_of_order")
		p.log.Warn(ctx, "skipping out of order event",
			logger.String("eventID", e.ID),
			logger.Time("instant", e.UTC()))
		return nil
	}
	p.last = e.UTC()
	p.res.Events++
	p.r.Ingest(e)
	for {
		s, ok := p.r.Next()
		if !ok {
			break
		}
		p.batch = append(p.batch, s)
		if len(p.batch) == cap(p.batch) {
			if err := p.flush(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *pipeline) flush(ctx context.Context) error {
	if len(p.batch) == 0 {
		return nil
	}
	if err := p.store.SaveSamples(ctx, p.batch); err != nil {
		return fmt.Errorf("save samples: %w", err)
	}
	metrics.RecordSamplesEmitted(len(p.batch))
	p.res.Samples += len(p.batch)
	p.batch = p.batch[:0]
	return nil
}

func (p *pipeline) finish(ctx context.Context) (IngestResult, error) {
	if err := p.flush(ctx); err != nil {
		return p.res, err
	}
	return p.res, nil
}
