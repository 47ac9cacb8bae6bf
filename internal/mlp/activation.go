package mlp

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Activation selects the elementwise function applied to hidden layers.
// The zero value is Logistic.
type Activation uint8

// Supported activations. The numeric codes are part of the persisted model format.
const (
	Logistic Activation = iota
	Tanh
)

// ParseActivation maps a configuration name to an Activation.
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "logistic", "sigmoid":
		return Logistic, nil
	case "tanh":
		return Tanh, nil
	default:
		return Logistic, fmt.Errorf("%w: unknown activation %q", ErrInvalidConfig, name)
	}
}

// Valid reports whether a is a known activation.
func (a Activation) Valid() bool {
	return a <= Tanh
}

func (a Activation) String() string {
	switch a {
	case Logistic:
		return "logistic"
	case Tanh:
		return "tanh"
	default:
		return fmt.Sprintf("activation(%d)", uint8(a))
	}
}

// Function evaluates the activation at x.
func (a Activation) Function(x float64) float64 {
	if a == Tanh {
		return math.Tanh(x)
	}
	return logistic(x)
}

// Derivative evaluates the derivative of the activation at the pre-activation x.
func (a Activation) Derivative(x float64) float64 {
	if a == Tanh {
		t := math.Tanh(x)
		return 1 - t*t
	}
	s := logistic(x)
	return s * (1 - s)
}

// UnmarshalJSON decodes the integer code and rejects unknown values.
func (a *Activation) UnmarshalJSON(b []byte) error {
	var code int
	if err := json.Unmarshal(b, &code); err != nil {
		return fmt.Errorf("%w: activation: %w", ErrDecode, err)
	}
	if code < 0 || code > int(Tanh) {
		return fmt.Errorf("%w: unknown activation code %d", ErrDecode, code)
	}
	*a = Activation(code)
	return nil
}

func logistic(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
