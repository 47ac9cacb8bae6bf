// Package features maps samples onto the network's input space.
package features

import "github.com/okian/huecast/internal/domain/model"

// Size is the length of a feature vector.
const Size = 3

// Vector encodes the time of day, day of week (Monday first) and month
// of the sample instant, each scaled to [0, 1].
func Vector(s model.Sample) []float64 {
	t := s.Instant.UTC()
	minutes := t.Hour()*60 + t.Minute()
	weekday := (int(t.Weekday()) + 6) % 7
	month := int(t.Month()) - 1
	return []float64{
		float64(minutes) / 1440,
		float64(weekday) / 6,
		float64(month) / 11,
	}
}

// Label is the training target for a sample: 1 for on, 0 for off.
func Label(s model.Sample) float64 {
	return s.State.Float()
}

// Dataset builds parallel input and target slices for training.
func Dataset(samples []model.Sample) (inputs, targets [][]float64) {
	inputs = make([][]float64, 0, len(samples))
	targets = make([][]float64, 0, len(samples))
	for _, s := range samples {
		inputs = append(inputs, Vector(s))
		targets = append(targets, []float64{Label(s)})
	}
	return inputs, targets
}

// OneHot builds targets for a two unit output layer: [off, on].
func OneHot(samples []model.Sample) [][]float64 {
	targets := make([][]float64, 0, len(samples))
	for _, s := range samples {
		on := Label(s)
		targets = append(targets, []float64{1 - on, on})
	}
	return targets
}
