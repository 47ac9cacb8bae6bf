// Package types contains common types used across the application
package types

import (
	"time"

	"github.com/okian/huecast/internal/domain/model"
)

// Prediction is the forecast light state at an instant.
type Prediction struct {
	At          time.Time        `json:"at"`
	Probability float64          `json:"probability"`
	State       model.LightState `json:"state"`
}
