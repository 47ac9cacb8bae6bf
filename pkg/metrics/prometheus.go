// Package metrics provides Prometheus metrics for the huecast service and jobs.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Manager holds every huecast metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ingest
	eventsIngested  prometheus.Counter
	eventsDuplicate prometheus.Counter
	eventsRejected  *prometheus.CounterVec

	// Resampling
	samplesEmitted   prometheus.Counter
	resamplerBlocked prometheus.Counter
	resamplerPending prometheus.Gauge

	// Sample store
	samplesStored prometheus.Counter
	storeLatency  *prometheus.HistogramVec

	// Training and inference
	trainingRuns     prometheus.Counter
	trainingEpoch    prometheus.Gauge
	trainingMSE      prometheus.Gauge
	trainingDuration prometheus.Gauge
	modelLoaded      prometheus.Gauge
	predictions      *prometheus.CounterVec
	accuracy         prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "huecast",
		subsystem:        "",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.eventsIngested = m.counter("events_ingested_total", "Light events accepted into the pipeline")
	m.eventsDuplicate = m.counter("events_duplicate_total", "Light events dropped as duplicates")
	m.eventsRejected = m.counterVec("events_rejected_total", "Light events rejected before queueing", "reason")

	m.samplesEmitted = m.counter("samples_emitted_total", "Samples produced by the resampler")
	m.resamplerBlocked = m.counter("resampler_blocked_total", "Pulls that returned no sample for lack of events")
	m.resamplerPending = m.gauge("resampler_pending_events", "Events held by the resampler and not yet consumed")

	m.samplesStored = m.counter("store_samples_saved_total", "Samples written to the sample store")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Sample store operation latency in milliseconds", "op")

	m.trainingRuns = m.counter("training_runs_total", "Completed training runs")
	m.trainingEpoch = m.gauge("training_epoch", "Last reported training epoch")
	m.trainingMSE = m.gauge("training_mse", "Last reported training error")
	m.trainingDuration = m.gauge("training_duration_seconds", "Wall time of the last training run")
	m.modelLoaded = m.gauge("model_loaded", "1 when a model is available for prediction")
	m.predictions = m.counterVec("predictions_total", "Predictions made by predicted state", "state")
	m.accuracy = m.gauge("prediction_accuracy", "Share of correct predictions in the last evaluation")

	m.queueSize = m.gauge("queue_size", "Current number of queued events")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum number of queued events")
	m.queueUtilization = m.gauge("queue_utilization", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Events enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Events dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Events that could not be enqueued")

	m.workerLatency = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "worker_processing_latency_milliseconds",
		Help:    "Time to apply one event in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
	m.workerErrors = m.counter("worker_errors_total", "Events the worker failed to apply")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")
}

// RecordEventIngested increments the accepted events counter.
func RecordEventIngested() { globalManager.eventsIngested.Inc() }

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() { globalManager.eventsDuplicate.Inc() }

// RecordEventRejected counts an event rejected for reason.
func RecordEventRejected(reason string) { globalManager.eventsRejected.WithLabelValues(reason).Inc() }

// RecordSamplesEmitted adds n emitted samples.
func RecordSamplesEmitted(n int) { globalManager.samplesEmitted.Add(float64(n)) }

// RecordResamplerBlocked counts a pull that found no sample.
func RecordResamplerBlocked() { globalManager.resamplerBlocked.Inc() }

// UpdateResamplerPending sets the number of events held by the resampler.
func UpdateResamplerPending(n int) { globalManager.resamplerPending.Set(float64(n)) }

// RecordSamplesStored adds n saved samples.
func RecordSamplesStored(n int) { globalManager.samplesStored.Add(float64(n)) }

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordTrainingProgress sets the last reported epoch and error.
func RecordTrainingProgress(epoch int, mse float64) {
	globalManager.trainingEpoch.Set(float64(epoch))
	globalManager.trainingMSE.Set(mse)
}

// RecordTrainingRun counts a finished training run and its duration.
func RecordTrainingRun(seconds float64) {
	globalManager.trainingRuns.Inc()
	globalManager.trainingDuration.Set(seconds)
}

// UpdateModelLoaded flags whether a model is available.
func UpdateModelLoaded(loaded bool) {
	v := 0.0
	if loaded {
		v = 1
	}
	globalManager.modelLoaded.Set(v)
}

// RecordPrediction counts a prediction of state ("on" or "off").
func RecordPrediction(state string) { globalManager.predictions.WithLabelValues(state).Inc() }

// UpdatePredictionAccuracy sets the accuracy of the last evaluation.
func UpdatePredictionAccuracy(acc float64) { globalManager.accuracy.Set(acc) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(u float64) { globalManager.queueUtilization.Set(u) }

// RecordQueueEnqueue counts an enqueued event.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a dequeued event.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a failed enqueue.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordWorkerProcessingLatency records how long one event took to apply.
func RecordWorkerProcessingLatency(latencyMs float64) { globalManager.workerLatency.Observe(latencyMs) }

// RecordWorkerError counts a worker failure.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error in component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Value returns the current value of a counter or gauge in the custom
// registry, summed over all label sets matching labels.
func Value(name string, labels map[string]string) (float64, error) {
	families, err := customRegistry.Gather()
	if err != nil {
		return 0, fmt.Errorf("gather: %w", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var sum float64
		for _, metric := range fam.GetMetric() {
			if !matches(metric, labels) {
				continue
			}
			switch {
			case metric.GetCounter() != nil:
				sum += metric.GetCounter().GetValue()
			case metric.GetGauge() != nil:
				sum += metric.GetGauge().GetValue()
			}
		}
		return sum, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
}

func matches(metric *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
