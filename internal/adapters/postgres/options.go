package postgres

import "github.com/okian/huecast/pkg/logger"

// Option applies a configuration option to the Source.
type Option func(*Source)

// WithLightID selects the light whose events are read, e.g. "/lights/3".
func WithLightID(id string) Option {
	return func(s *Source) {
		if id != "" {
			s.lightID = id
		}
	}
}

// WithLimit caps the number of rows read per query.
func WithLimit(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithLogger sets the logger used by the source.
func WithLogger(l logger.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.logger = l
		}
	}
}
