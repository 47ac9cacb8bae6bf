// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownState is returned when a light state cannot be parsed.
var ErrUnknownState = errors.New("unknown light state")

// LightState is the on/off level of a light.
type LightState bool

// Light states.
const (
	Off LightState = false
	On  LightState = true
)

// String renders the state as "on" or "off".
func (s LightState) String() string {
	if s {
		return "on"
	}
	return "off"
}

// Float returns 1 for On and 0 for Off.
func (s LightState) Float() float64 {
	if s {
		return 1
	}
	return 0
}

// ParseLightState accepts true/false/on/off (case-insensitive).
// The Hue bridge event log stores the state as the text "true" or "false".
func ParseLightState(v string) (LightState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "on":
		return On, nil
	case "false", "off":
		return Off, nil
	default:
		return Off, fmt.Errorf("%w: %q", ErrUnknownState, v)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s LightState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LightState) UnmarshalText(b []byte) error {
	v, err := ParseLightState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Event is a single observed change of light state.
// Instants carry no zone information and are treated as UTC.
type Event struct {
	ID      string     // opaque identifier, used for idempotency
	Instant time.Time  // when the change happened
	State   LightState // level after the change
}

// UTC returns the event instant in UTC.
func (e Event) UTC() time.Time {
	return e.Instant.UTC()
}

// Sample is the reconstructed light state at one point of the sampling grid.
type Sample struct {
	Instant time.Time  `json:"instant"`
	State   LightState `json:"state"`
}

// String implements fmt.Stringer.
func (s Sample) String() string {
	return s.Instant.UTC().Format(time.RFC3339) + " " + s.State.String()
}
