package jobs

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/okian/huecast/internal/domain/features"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/mlp"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// TrainOptions configures a training run.
type TrainOptions struct {
	Network   mlp.Config
	Epochs    int
	ModelPath string
	// Seed drives shuffling and weight initialisation; 0 picks a random seed.
	Seed uint64
}

// TrainResult summarises a training run.
type TrainResult struct {
	Samples  int
	MSE      float64
	Duration time.Duration
}

// ValidateNetwork checks that cfg can be trained on feature vectors: at
// least two layers, Size inputs and one or two outputs.
func ValidateNetwork(cfg mlp.Config) error {
	if len(cfg.Layers) < 2 {
		return fmt.Errorf("%w: at least 2 layers must be defined", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Inputs() != features.Size {
		return fmt.Errorf("%w: first layer must have %d units, got %d", ErrInvalidConfig, features.Size, cfg.Inputs())
	}
	if o := cfg.Outputs(); o != 1 && o != 2 {
		return fmt.Errorf("%w: last layer must have 1 or 2 units, got %d", ErrInvalidConfig, o)
	}
	return nil
}

// Train loads the samples in r, shuffles them, trains a fresh network and
// writes it to opts.ModelPath. Progress lines go to out.
func Train(ctx context.Context, store Loader, r Range, opts TrainOptions, out io.Writer) (TrainResult, error) {
	log := logger.Get().Named("train")
	if err := ValidateNetwork(opts.Network); err != nil {
		return TrainResult{}, err
	}
	if opts.Epochs <= 0 {
		return TrainResult{}, fmt.Errorf("%w: epochs must be positive", ErrInvalidConfig)
	}

	from, to := r.Window()
	samples, err := store.Samples(ctx, from, to)
	if err != nil {
		return TrainResult{}, fmt.Errorf("load samples: %w", err)
	}
	if len(samples) == 0 {
		return TrainResult{}, ErrNoSamples
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(samples), func(i, j int) { samples[i], samples[j] = samples[j], samples[i] })

	inputs, targets := dataset(samples, opts.Network.Outputs())

	var last mlp.TrainingState
	cfg := opts.Network
	cfg.Reporter = mlp.ProgressReporterFunc(func(s mlp.TrainingState) {
		last = s
		metrics.RecordTrainingProgress(s.Epoch, s.MSE)
		fmt.Fprintf(out, "Epoch %d of %d; mse = %g\n", s.Epoch, s.TotalEpochs, s.MSE)
	})
	n := mlp.New(cfg, mlp.WithRand(rng))

	log.Info(ctx, "training",
		logger.String("samples", humanize.Comma(int64(len(samples)))),
		logger.Any("layers", cfg.Layers),
		logger.String("activation", cfg.Activation.String()),
		logger.Int("epochs", opts.Epochs),
		logger.Any("seed", seed))

	start := time.Now()
	n.Train(inputs, targets, opts.Epochs)
	took := time.Since(start)
	metrics.RecordTrainingRun(took.Seconds())
	fmt.Fprintln(out, "Training complete!")

	if err := n.Dump(opts.ModelPath); err != nil {
		return TrainResult{}, err
	}
	log.Info(ctx, "model written",
		logger.String("path", opts.ModelPath),
		logger.Duration("took", took),
		logger.Float64("mse", last.MSE))
	return TrainResult{Samples: len(samples), MSE: last.MSE, Duration: took}, nil
}

func dataset(samples []model.Sample, outputs int) (inputs, targets [][]float64) {
	inputs, targets = features.Dataset(samples)
	if outputs == 2 {
		targets = features.OneHot(samples)
	}
	return inputs, targets
}
