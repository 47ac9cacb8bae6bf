package mlp

import "errors"

var (
	// ErrInvalidConfig is returned when a network topology or learning rate is unusable.
	ErrInvalidConfig = errors.New("invalid network config")
	// ErrIO is returned when a model file cannot be opened, created or written.
	ErrIO = errors.New("model io")
	// ErrDecode is returned when a persisted model cannot be decoded.
	ErrDecode = errors.New("model decode")
)
