package mlp

import "fmt"

// TrainingState is a snapshot of training progress.
type TrainingState struct {
	Epoch       int
	TotalEpochs int
	// MSE of the last example of the epoch, not an epoch average.
	MSE float64
}

// ProgressReporter receives periodic training updates.
type ProgressReporter interface {
	ReportProgress(TrainingState)
}

// ProgressReporterFunc adapts a function to ProgressReporter.
type ProgressReporterFunc func(TrainingState)

// ReportProgress calls f(s).
func (f ProgressReporterFunc) ReportProgress(s TrainingState) { f(s) }

// Config describes a network. Reporter is never persisted.
type Config struct {
	Layers       []int
	Activation   Activation
	LearningRate float64
	Reporter     ProgressReporter
}

// DefaultConfig returns a 2-3-1 logistic network with learning rate 0.1.
func DefaultConfig() Config {
	return Config{
		Layers:       []int{2, 3, 1},
		Activation:   Logistic,
		LearningRate: 0.1,
	}
}

// Validate checks the topology, activation and learning rate.
func (c Config) Validate() error {
	if len(c.Layers) < 2 {
		return fmt.Errorf("%w: need at least 2 layers, got %d", ErrInvalidConfig, len(c.Layers))
	}
	for i, n := range c.Layers {
		if n <= 0 {
			return fmt.Errorf("%w: layer %d has size %d", ErrInvalidConfig, i, n)
		}
	}
	if !c.Activation.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Activation)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("%w: learning rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}

// Inputs returns the input layer width.
func (c Config) Inputs() int { return c.Layers[0] }

// Outputs returns the output layer width.
func (c Config) Outputs() int { return c.Layers[len(c.Layers)-1] }
