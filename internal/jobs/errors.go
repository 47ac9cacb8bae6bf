package jobs

import "errors"

// Sentinel kinds for job errors.
var (
	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidConfig = errors.New("invalid network config")
	ErrNoSamples     = errors.New("no samples in range")
	ErrBadRecord     = errors.New("bad csv record")
)
