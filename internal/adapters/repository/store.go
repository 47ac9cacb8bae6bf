// Package repository stores resampled light samples.
package repository

import (
	"context"
	"time"

	"github.com/okian/huecast/internal/domain/model"
)

// Store persists samples keyed by instant. Saving an instant that is
// already present overwrites its state.
type Store interface {
	Init(ctx context.Context) error
	SaveSamples(ctx context.Context, samples []model.Sample) error
	// Samples returns samples with from <= instant < to in ascending
	// order. A zero bound is open.
	Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

func checkRange(from, to time.Time) error {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return ErrInvalidRange
	}
	return nil
}

func observe(op string, start time.Time) {
	recordLatency(op, time.Since(start))
}
