package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrOutOfOrder = errors.New("event older than the last applied event")
)
