// Package worker applies queued light events to the resampler and stores
// the samples it produces.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/huecast/internal/adapters/mq/queue"
	"github.com/okian/huecast/internal/domain/model"
	"github.com/okian/huecast/internal/domain/resample"
	"github.com/okian/huecast/pkg/logger"
	"github.com/okian/huecast/pkg/metrics"
)

// Queue defines how the worker receives events.
type Queue interface {
	Dequeue() <-chan queue.Event
}

// Sink receives the samples produced by the resampler.
type Sink interface {
	SaveSamples(ctx context.Context, samples []model.Sample) error
}

// Stats is a snapshot of worker counters.
type Stats struct {
	Applied       int64     `json:"applied"`
	OutOfOrder    int64     `json:"out_of_order"`
	Samples       int64     `json:"samples"`
	SinkErrors    int64     `json:"sink_errors"`
	Pending       int       `json:"pending"`
	LastEvent     time.Time `json:"last_event"`
	LastSampledAt time.Time `json:"last_sampled_at"`
}

// IngestWorker is the single owner of a resampler. Events must reach it in
// time order, so there is exactly one worker per queue.
type IngestWorker struct {
	queue     Queue
	sink      Sink
	resampler *resample.Resampler
	name      string
	logger    logger.Logger

	applied    atomic.Int64
	outOfOrder atomic.Int64
	samples    atomic.Int64
	sinkErrors atomic.Int64

	mu          sync.RWMutex // guards the fields below
	last        time.Time
	lastSampled time.Time
	pending     int

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewIngestWorker creates a worker reading q and writing to sink.
func NewIngestWorker(q Queue, sink Sink, opts ...Option) *IngestWorker {
	w := &IngestWorker{
		queue:     q,
		sink:      sink,
		resampler: resample.New(),
		name:      "ingest",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until ctx is cancelled, Shutdown is called, or the
// queue is closed and drained.
func (w *IngestWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, e); err != nil {
				w.logger.Warn(ctx, "event not applied",
					logger.String("eventID", e.ID),
					logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the current event to finish.
func (w *IngestWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *IngestWorker) Done() <-chan struct{} {
	return w.done
}

// Stats returns the current counters.
func (w *IngestWorker) Stats() Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{
		Applied:       w.applied.Load(),
		OutOfOrder:    w.outOfOrder.Load(),
		Samples:       w.samples.Load(),
		SinkErrors:    w.sinkErrors.Load(),
		Pending:       w.pending,
		LastEvent:     w.last,
		LastSampledAt: w.lastSampled,
	}
}

func (w *IngestWorker) process(ctx context.Context, e model.Event) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	w.mu.Lock()
	if !w.last.IsZero() && e.UTC().Before(w.last) {
		w.mu.Unlock()
		w.outOfOrder.Add(1)
		metrics.RecordEventRejected("out_of_order")
		metrics.RecordErrorByComponent("worker", "out_of_order")
		return fmt.Errorf("%w: %s before %s", ErrOutOfOrder,
			e.UTC().Format(time.RFC3339), w.last.Format(time.RFC3339))
	}
	w.last = e.UTC()

	w.resampler.Ingest(e)
	out := w.resampler.Drain()
	w.pending = w.resampler.Pending()
	if len(out) > 0 {
		w.lastSampled = out[len(out)-1].Instant
	}
	w.mu.Unlock()

	w.applied.Add(1)
	metrics.UpdateResamplerPending(w.pending)
	if len(out) == 0 {
		metrics.RecordResamplerBlocked()
		return nil
	}
	metrics.RecordSamplesEmitted(len(out))
	w.samples.Add(int64(len(out)))

	if err := w.sink.SaveSamples(ctx, out); err != nil {
		w.sinkErrors.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "sink")
		return fmt.Errorf("save %d samples: %w", len(out), err)
	}
	w.logger.Debug(ctx, "samples stored",
		logger.Int("count", len(out)),
		logger.Time("through", out[len(out)-1].Instant))
	return nil
}
