package mlp

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivation_Values(t *testing.T) {
	assert.InDelta(t, 0.5, Logistic.Function(0), 1e-12)
	assert.InDelta(t, 0.25, Logistic.Derivative(0), 1e-12)
	assert.InDelta(t, 0.0, Tanh.Function(0), 1e-12)
	assert.InDelta(t, 1.0, Tanh.Derivative(0), 1e-12)
	assert.InDelta(t, math.Tanh(0.7), Tanh.Function(0.7), 1e-12)
}

func TestActivation_DerivativeMatchesFiniteDifference(t *testing.T) {
	const h = 1e-6
	for _, act := range []Activation{Logistic, Tanh} {
		for _, x := range []float64{-3, -0.4, 0, 0.9, 2.5} {
			numeric := (act.Function(x+h) - act.Function(x-h)) / (2 * h)
			assert.InDelta(t, numeric, act.Derivative(x), 1e-8, "%s at %g", act, x)
		}
	}
}

func TestParseActivation(t *testing.T) {
	for in, want := range map[string]Activation{
		"":         Logistic,
		"logistic": Logistic,
		"Sigmoid":  Logistic,
		" tanh ":   Tanh,
	} {
		got, err := ParseActivation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseActivation("relu")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestActivation_JSONCodes(t *testing.T) {
	for _, act := range []Activation{Logistic, Tanh} {
		b, err := json.Marshal(act)
		require.NoError(t, err)

		var back Activation
		require.NoError(t, json.Unmarshal(b, &back))
		assert.Equal(t, act, back)
	}

	b, _ := json.Marshal(Tanh)
	assert.Equal(t, "1", string(b))

	var bad Activation
	err := json.Unmarshal([]byte("7"), &bad)
	assert.True(t, errors.Is(err, ErrDecode))

	err = json.Unmarshal([]byte(`"tanh"`), &bad)
	assert.True(t, errors.Is(err, ErrDecode))
}
