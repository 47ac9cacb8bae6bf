package types

import "errors"

// ErrNoModel is returned by predictors that have no trained network loaded.
var ErrNoModel = errors.New("no model loaded")
