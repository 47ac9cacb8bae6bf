// Package config defines huecast configuration and its loading.
//
// Conventions:
// - New(ctx) returns a Config with defaults.
// - Load layers a YAML file and HUECAST_ environment variables on top.
// - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/huecast/internal/adapters/repository"
	"github.com/okian/huecast/internal/domain/features"
	"github.com/okian/huecast/internal/mlp"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is "text" or "json".
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// ShutdownTimeout bounds graceful shutdown of the service.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// DatabaseURL is the Postgres DSN of the Hue bridge event log.
	DatabaseURL string `koanf:"database_url"`
	// LightID selects the light read from the event log.
	LightID string `koanf:"light_id"`

	// StoreDriver is "memory" or "sqlite"; StorePath is the sqlite file.
	StoreDriver string `koanf:"store_driver"`
	StorePath   string `koanf:"store_path"`

	// SampleIntervalMins is the resampling grid in minutes.
	SampleIntervalMins int `koanf:"sample_interval_mins"`

	// Layers is the comma separated network topology, e.g. "3,6,1".
	Layers       string  `koanf:"layers"`
	Epochs       int     `koanf:"epochs"`
	LearningRate float64 `koanf:"learning_rate"`
	Activation   string  `koanf:"activation"`
	ModelPath    string  `koanf:"model_path"`
	// Seed makes weight initialisation and shuffling reproducible; 0 is random.
	Seed uint64 `koanf:"seed"`

	// Threshold is the probability at which a light is predicted on.
	Threshold float64 `koanf:"threshold"`

	// EventQueueSize bounds the in-memory event queue.
	EventQueueSize int `koanf:"queue_size"`
	// DedupeSize sets how many event IDs are remembered.
	DedupeSize int `koanf:"dedupe_size"`
}

// New creates a Config with defaults. ctx is accepted for the
// project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Addr:               ":9080",
		ShutdownTimeout:    10 * time.Second,
		LightID:            "/lights/3",
		StoreDriver:        repository.BackendSQLite,
		StorePath:          "huecast.db",
		SampleIntervalMins: 15,
		Layers:             "3,6,1",
		Epochs:             1000,
		LearningRate:       0.1,
		Activation:         "logistic",
		ModelPath:          "model.json",
		Threshold:          0.5,
		EventQueueSize:     10_000,
		DedupeSize:         50_000,
	}
}

// LayerSizes parses Layers.
func (c *Config) LayerSizes() ([]int, error) {
	return ParseLayers(c.Layers)
}

// ParseLayers parses a comma separated list of positive layer sizes.
func ParseLayers(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: bad layer size %q in %q", ErrInvalidConfig, p, s)
		}
		out = append(out, n)
	}
	return out, nil
}

// NetworkConfig builds the network configuration for a fresh model.
func (c *Config) NetworkConfig() (mlp.Config, error) {
	layers, err := c.LayerSizes()
	if err != nil {
		return mlp.Config{}, err
	}
	act, err := mlp.ParseActivation(c.Activation)
	if err != nil {
		return mlp.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	nc := mlp.Config{Layers: layers, Activation: act, LearningRate: c.LearningRate}
	if err := nc.Validate(); err != nil {
		return mlp.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if layers[0] != features.Size {
		return mlp.Config{}, fmt.Errorf("%w: first layer must have %d inputs, got %d",
			ErrInvalidConfig, features.Size, layers[0])
	}
	return nc, nil
}

// SampleInterval returns the resampling grid as a duration.
func (c *Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMins) * time.Minute
}

// Validate checks the fields every command relies on.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SampleIntervalMins <= 0:
		return fmt.Errorf("%w: sample_interval_mins must be positive", ErrInvalidConfig)
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive", ErrInvalidConfig)
	case c.Threshold <= 0 || c.Threshold >= 1:
		return fmt.Errorf("%w: threshold must be in (0, 1)", ErrInvalidConfig)
	case c.EventQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.StoreDriver != repository.BackendMemory && c.StoreDriver != repository.BackendSQLite:
		return fmt.Errorf("%w: unknown store_driver %q", ErrInvalidConfig, c.StoreDriver)
	}
	if _, err := c.NetworkConfig(); err != nil {
		return err
	}
	return nil
}
