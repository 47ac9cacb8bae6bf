// Package service wires the queue, ingest worker, sample store and
// predictor behind the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/huecast/internal/adapters/mq/queue"
	"github.com/okian/huecast/internal/adapters/mq/worker"
	"github.com/okian/huecast/internal/adapters/repository"
	"github.com/okian/huecast/internal/domain/dedupe"
	"github.com/okian/huecast/internal/domain/features"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/domain/resample"
	"github.com/okian/huecast/internal/domain/scoring"
	"github.com/okian/huecast/internal/domain/types"
	"github.com/okian/huecast/internal/mlp"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// Service implements the API dependencies for light ingest and prediction.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   repository.Store
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	worker  *worker.IngestWorker
	scorer  *scoring.Scorer

	// cancelWorker stops the worker without draining the queue.
	cancelWorker context.CancelFunc

	// model is guarded by modelMu; FeedForward writes its activation cache.
	modelMu sync.Mutex
	model   *mlp.Network

	// Configuration
	queueSize  int
	dedupeSize int
	interval   time.Duration
	threshold  float64

	// State
	runID     string
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:  10000,
		dedupeSize: dedupe.DefaultMaxSize,
		interval:   resample.DefaultInterval,
		threshold:  scoring.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the components and launches the ingest worker. The
// worker outlives ctx and only stops through Stop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if err := s.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	s.runID = uuid.NewString()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.scorer = scoring.NewScorer(scoring.WithThreshold(s.threshold))
	s.worker = worker.NewIngestWorker(s.queue, s.store,
		worker.WithResampler(resample.New(resample.WithInterval(s.interval))),
		worker.WithLogger(s.logger.Named("worker")),
	)
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelWorker = cancel
	go s.worker.Run(workerCtx)

	s.modelMu.Lock()
	metrics.UpdateModelLoaded(s.model != nil)
	s.modelMu.Unlock()

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "huecast service started",
		logger.String("runID", s.runID),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("interval", s.interval),
		logger.Float64("threshold", s.scorer.Threshold()),
	)
	return nil
}

// Stop closes the queue, waits for the worker to drain it and closes the
// store. If ctx expires first the worker is cancelled mid-queue.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping huecast service", logger.String("runID", s.runID))

	_ = s.queue.Close()
	var errs []error
	select {
	case <-s.worker.Done():
	case <-ctx.Done():
		s.cancelWorker()
		errs = append(errs, s.worker.Shutdown(ctx))
	}
	s.cancelWorker()
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	s.started = false
	s.logger.Info(ctx, "huecast service stopped", logger.String("runID", s.runID))
	return errors.Join(errs...)
}

// SeenAndRecord reports whether the event id was already seen and records
// it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return false
	}
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return
	}
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// Enqueue submits an event to the ingest worker.
func (s *Service) Enqueue(ctx context.Context, e model.Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	if err := s.queue.Enqueue(ctx, e); err != nil {
		return err
	}
	metrics.RecordEventIngested()
	s.logger.Debug(ctx, "event enqueued",
		logger.String("eventID", e.ID),
		logger.Time("instant", e.UTC()),
		logger.String("state", e.State.String()),
	)
	return nil
}

// LoadModel reads a network from path and installs it.
func (s *Service) LoadModel(path string) error {
	n, err := mlp.Load(path, nil)
	if err != nil {
		return err
	}
	return s.SetModel(n)
}

// SetModel installs n as the predictor. A nil network unloads the model.
func (s *Service) SetModel(n *mlp.Network) error {
	if n != nil && n.Config().Inputs() != features.Size {
		return fmt.Errorf("%w: want %d inputs, got %d", ErrBadModel, features.Size, n.Config().Inputs())
	}
	s.modelMu.Lock()
	s.model = n
	s.modelMu.Unlock()
	metrics.UpdateModelLoaded(n != nil)
	return nil
}

// Predict forecasts the light state at the given instant. The probability
// is the last output unit, which is the "on" class for softmax outputs.
func (s *Service) Predict(_ context.Context, at time.Time) (types.Prediction, error) {
	s.modelMu.Lock()
	if s.model == nil {
		s.modelMu.Unlock()
		return types.Prediction{}, types.ErrNoModel
	}
	out := s.model.FeedForward(features.Vector(model.Sample{Instant: at}))
	s.modelMu.Unlock()

	p := out[len(out)-1]
	state := s.classifier().Classify(p)
	metrics.RecordPrediction(state.String())
	return types.Prediction{At: at.UTC(), Probability: p, State: state}, nil
}

// Samples returns stored samples with from <= instant < to.
func (s *Service) Samples(ctx context.Context, from, to time.Time) ([]model.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store.Samples(ctx, from, to)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.modelMu.Lock()
	loaded := s.model != nil
	s.modelMu.Unlock()

	stats := map[string]any{
		"runId":       s.runID,
		"started":     s.started,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"interval":    s.interval.String(),
		"modelLoaded": loaded,
	}
	if !s.started {
		return stats
	}

	stats["uptime"] = time.Since(s.startedAt).Round(time.Second).String()
	stats["queueLength"] = s.queue.Len()
	stats["dedupeEntries"] = s.deduper.Size()
	stats["worker"] = s.worker.Stats()
	if n, err := s.store.Count(context.Background()); err == nil {
		stats["storedSamples"] = n
	} else {
		s.logger.Warn(context.Background(), "count samples", logger.Error(err))
	}
	return stats
}

func (s *Service) classifier() *scoring.Scorer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.scorer == nil {
		return scoring.NewScorer(scoring.WithThreshold(s.threshold))
	}
	return s.scorer
}
