package simulate

import "errors"

// Sentinel kinds for simulation errors.
var (
	ErrInvalidRange = errors.New("invalid date range")
	ErrSubmit       = errors.New("submit failed")
)
