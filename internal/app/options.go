package service

import (
	"time"

	"github.com/okian/huecast/internal/adapters/repository"
	"github.com/okian/huecast/internal/mlp"
	"github.com/okian/huecast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore sets the sample store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSampleInterval sets the resampling grid.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithThreshold sets the probability at which a light is predicted on.
func WithThreshold(th float64) Option {
	return func(s *Service) {
		s.threshold = th
	}
}

// WithModel installs a trained network at construction time.
func WithModel(n *mlp.Network) Option {
	return func(s *Service) {
		s.model = n
	}
}
