package worker

import (
	"github.com/okian/huecast/internal/domain/resample"
	"github.com/okian/huecast/pkg/logger"
)

// Option applies a configuration option to the IngestWorker.
type Option func(*IngestWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *IngestWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *IngestWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithResampler replaces the default resampler.
func WithResampler(r *resample.Resampler) Option {
	return func(w *IngestWorker) {
		if r != nil {
			w.resampler = r
		}
	}
}
