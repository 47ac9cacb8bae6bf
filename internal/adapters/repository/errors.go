package repository

import "errors"

// Sentinel kinds for sample store errors.
var (
	ErrNotInitialized     = errors.New("store is not initialized")
	ErrInvalidRange       = errors.New("invalid sample range")
	ErrUnsupportedBackend = errors.New("unsupported store backend")
	ErrPathRequired       = errors.New("sqlite path is required")
)
