package jobs

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/okian/huecast/internal/domain/features"
	"github.com/okian/huecast/internal/domain/scoring"
	"github.com/okian/huecast/internal/mlp"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// Predict evaluates the model at modelPath against the stored samples of
// r. It prints one line per sample marked hit or miss followed by the
// success rate.
func Predict(ctx context.Context, store Loader, r Range, modelPath string, scorer *scoring.Scorer, out io.Writer) (scoring.Tally, error) {
	log := logger.Get().Named("predict")
	n, err := mlp.Load(modelPath, nil)
	if err != nil {
		return scoring.Tally{}, err
	}
	if n.Config().Inputs() != features.Size {
		return scoring.Tally{}, fmt.Errorf("%w: model has %d inputs, want %d",
			ErrInvalidConfig, n.Config().Inputs(), features.Size)
	}

	from, to := r.Window()
	samples, err := store.Samples(ctx, from, to)
	if err != nil {
		return scoring.Tally{}, fmt.Errorf("load samples: %w", err)
	}
	if len(samples) == 0 {
		return scoring.Tally{}, ErrNoSamples
	}

	var tally scoring.Tally
	for _, s := range samples {
		outv := n.FeedForward(features.Vector(s))
		predicted := scorer.Classify(outv[len(outv)-1])
		metrics.RecordPrediction(predicted.String())
		mark := "miss"
		if tally.Add(predicted, s.State) {
			mark = "hit"
		}
		fmt.Fprintf(out, "%s (%s): %s predicted %s %s\n",
			s.Instant.UTC().Format("2006-01-02 15:04"), s.Instant.UTC().Weekday(), s.State, predicted, mark)
	}

	metrics.UpdatePredictionAccuracy(tally.Accuracy())
	fmt.Fprintf(out, "Success rate: %.1f%% (%s of %s samples)\n",
		tally.Accuracy()*100, humanize.Comma(int64(tally.Correct())), humanize.Comma(int64(tally.Total())))
	log.Info(ctx, "evaluation finished", logger.String("result", tally.String()))
	return tally, nil
}
