// Package scoring turns network outputs into light states and keeps
// accuracy tallies against known samples.
package scoring

import (
	"fmt"

	"github.com/okian/huecast/internal/domain/model"
)

// DefaultThreshold is the probability at or above which a light is predicted on.
const DefaultThreshold = 0.5

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithThreshold sets the decision threshold. Values outside (0, 1) are ignored.
func WithThreshold(th float64) Option {
	return func(s *Scorer) {
		if th > 0 && th < 1 {
			s.threshold = th
		}
	}
}

// Scorer classifies network outputs.
type Scorer struct {
	threshold float64
}

// NewScorer creates a scorer with the default threshold unless overridden.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{threshold: DefaultThreshold}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the decision threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Classify maps a probability of the light being on to a state.
func (s *Scorer) Classify(p float64) model.LightState {
	return model.LightState(p >= s.threshold)
}

// Tally counts predictions against actual states.
type Tally struct {
	TruePositive  int `json:"true_positive"`
	TrueNegative  int `json:"true_negative"`
	FalsePositive int `json:"false_positive"`
	FalseNegative int `json:"false_negative"`
}

// Add records one prediction and reports whether it was a hit.
func (t *Tally) Add(predicted, actual model.LightState) bool {
	p, a := bool(predicted), bool(actual)
	switch {
	case p && a:
		t.TruePositive++
	case !p && !a:
		t.TrueNegative++
	case p && !a:
		t.FalsePositive++
	default:
		t.FalseNegative++
	}
	return predicted == actual
}

// Total is the number of recorded predictions.
func (t Tally) Total() int {
	return t.TruePositive + t.TrueNegative + t.FalsePositive + t.FalseNegative
}

// Correct is the number of hits.
func (t Tally) Correct() int {
	return t.TruePositive + t.TrueNegative
}

// Accuracy is the share of hits in [0, 1], or 0 for an empty tally.
func (t Tally) Accuracy() float64 {
	if t.Total() == 0 {
		return 0
	}
	return float64(t.Correct()) / float64(t.Total())
}

func (t Tally) String() string {
	return fmt.Sprintf("%d/%d correct (%.2f%%)", t.Correct(), t.Total(), 100*t.Accuracy())
}
