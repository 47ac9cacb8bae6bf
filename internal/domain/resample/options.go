package resample

import "time"

// Option applies a configuration option to the Resampler.
type Option func(*Resampler)

// WithInterval sets the sampling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(r *Resampler) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithIntervalMinutes sets the sampling interval in whole minutes.
func WithIntervalMinutes(mins int) Option {
	return WithInterval(time.Duration(mins) * time.Minute)
}
