package jobs

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/simulate"
	"github.com/okian/huecast/pkg/logger"
)

// ExportDB resamples the events of r from src into store.
func ExportDB(ctx context.Context, src EventSource, store Saver, r Range, interval time.Duration) (IngestResult, error) {
	log := logger.Get().Named("export-db")
	p := newPipeline(store, interval, log)
	if err := src.Stream(ctx, r.From, r.To, func(e model.Event) error {
		return p.add(ctx, e)
	}); err != nil {
		return p.res, err
	}
	res, err := p.finish(ctx)
	logResult(ctx, log, res)
	return res, err
}

// Import reads timestamp,state CSV records, sorts them by time and
// resamples them into store. A header row is skipped. Timestamps are
// RFC3339; state is on/off/true/false.
func Import(ctx context.Context, in io.Reader, store Saver, interval time.Duration) (IngestResult, error) {
	log := logger.Get().Named("import")
	events, err := readCSV(in)
	if err != nil {
		return IngestResult{}, err
	}
	slices.SortStableFunc(events, func(a, b model.Event) int {
		return a.UTC().Compare(b.UTC())
	})

	p := newPipeline(store, interval, log)
	for _, e := range events {
		if err := p.add(ctx, e); err != nil {
			return p.res, err
		}
	}
	res, err := p.finish(ctx)
	logResult(ctx, log, res)
	return res, err
}

func readCSV(in io.Reader) ([]model.Event, error) {
	rd := csv.NewReader(in)
	rd.FieldsPerRecord = 2
	rd.TrimLeadingSpace = true
	rd.ReuseRecord = true

	var events []model.Event
	for line := 1; ; line++ {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBadRecord, err)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "timestamp") {
			continue
		}
		at, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadRecord, line, err)
		}
		st, err := model.ParseLightState(rec[1])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrBadRecord, line, err)
		}
		events = append(events, model.Event{
			ID:      fmt.Sprintf("csv-%d", line),
			Instant: at,
			State:   st,
		})
	}
}

// Simulate generates a synthetic history and resamples it into store.
func Simulate(ctx context.Context, cfg simulate.Config, store Saver, interval time.Duration) (IngestResult, error) {
	log := logger.Get().Named("simulate")
	events, err := simulate.Generate(cfg)
	if err != nil {
		return IngestResult{}, err
	}
	p := newPipeline(store, interval, log)
	for _, e := range events {
		if err := p.add(ctx, e); err != nil {
			return p.res, err
		}
	}
	res, err := p.finish(ctx)
	logResult(ctx, log, res)
	return res, err
}

func logResult(ctx context.Context, log logger.Logger, res IngestResult) {
	log.Info(ctx, "ingest finished",
		logger.String("events", humanize.Comma(int64(res.Events))),
		logger.String("samples", humanize.Comma(int64(res.Samples))),
		logger.Int("skipped", res.Skipped))
}
