package postgres

import "errors"

// Sentinel kinds for event source errors.
var (
	ErrConnect  = errors.New("postgres connect")
	ErrQuery    = errors.New("postgres query")
	ErrBadState = errors.New("unparseable light state")
)
