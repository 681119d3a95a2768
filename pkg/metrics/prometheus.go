// Package metrics provides Prometheus metrics for the progress predictor.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Outcome label values.
const (
	OutcomeOK             = "ok"
	OutcomeError          = "error"
	OutcomeUntrained      = "untrained"
	OutcomeColdStart      = "cold_start"
	OutcomeMissing        = "missing"
	OutcomeSchemaMismatch = "schema_mismatch"
	OutcomeInsufficient   = "insufficient_data"
)

// Manager manages all Prometheus metrics for the predictor.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Training
	trainingRuns     *prometheus.CounterVec
	trainingDuration *prometheus.HistogramVec
	trainingSamples  *prometheus.GaugeVec
	modelQuality     *prometheus.GaugeVec

	// Inference
	predictions       *prometheus.CounterVec
	predictionLatency *prometheus.HistogramVec
	modelLoads        *prometheus.CounterVec

	// Event store
	storeQueryLatency prometheus.Histogram
	storeErrors       prometheus.Counter
	eventsSeeded      prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "progresscast",
		subsystem:        "predictor",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

// RefreshInterval is how often system gauges should be sampled.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.trainingRuns = auto.NewCounterVec(
		m.counterOpts("training_runs_total", "Training runs by family, activity key and outcome"),
		[]string{"family", "activity", "outcome"},
	)
	m.trainingDuration = auto.NewHistogramVec(
		m.histogramOpts("training_duration_milliseconds", "Wall time of a training run in milliseconds"),
		[]string{"family"},
	)
	m.trainingSamples = auto.NewGaugeVec(
		m.gaugeOpts("training_samples", "Number of windows in the last training set"),
		[]string{"family", "activity"},
	)
	m.modelQuality = auto.NewGaugeVec(
		m.gaugeOpts("model_quality", "Evaluation metrics of the last trained model"),
		[]string{"family", "activity", "metric"},
	)

	m.predictions = auto.NewCounterVec(
		m.counterOpts("predictions_total", "Prediction requests by family and outcome"),
		[]string{"family", "outcome"},
	)
	m.predictionLatency = auto.NewHistogramVec(
		m.histogramOpts("prediction_latency_milliseconds", "Prediction latency in milliseconds"),
		[]string{"family"},
	)
	m.modelLoads = auto.NewCounterVec(
		m.counterOpts("model_loads_total", "Model artifact loads by family and outcome"),
		[]string{"family", "outcome"},
	)

	m.storeQueryLatency = auto.NewHistogram(
		m.histogramOpts("store_query_latency_milliseconds", "Event store query latency in milliseconds"),
	)
	m.storeErrors = auto.NewCounter(m.counterOpts("store_errors_total", "Event store query failures"))
	m.eventsSeeded = auto.NewCounter(m.counterOpts("events_seeded_total", "Synthetic score events written"))

	// HTTP Performance Metrics - User experience indicators
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Total number of errors by component"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordTraining records the outcome and duration of one training run.
func (m *Manager) RecordTraining(family, activity, outcome string, d time.Duration) {
	m.trainingRuns.WithLabelValues(family, activity, outcome).Inc()
	m.trainingDuration.WithLabelValues(family).Observe(float64(d.Milliseconds()))
}

// UpdateTrainingSamples sets the training set size for a model.
func (m *Manager) UpdateTrainingSamples(family, activity string, n int) {
	m.trainingSamples.WithLabelValues(family, activity).Set(float64(n))
}

// UpdateModelQuality sets one evaluation metric for a model.
func (m *Manager) UpdateModelQuality(family, activity, metric string, v float64) {
	m.modelQuality.WithLabelValues(family, activity, metric).Set(v)
}

// RecordPrediction counts a prediction and observes its latency.
func (m *Manager) RecordPrediction(family, outcome string, d time.Duration) {
	m.predictions.WithLabelValues(family, outcome).Inc()
	m.predictionLatency.WithLabelValues(family).Observe(float64(d.Microseconds()) / 1000)
}

// RecordModelLoad counts a model load attempt.
func (m *Manager) RecordModelLoad(family, outcome string) {
	m.modelLoads.WithLabelValues(family, outcome).Inc()
}

// RecordStoreQuery observes an event store query.
func (m *Manager) RecordStoreQuery(d time.Duration, err error) {
	m.storeQueryLatency.Observe(float64(d.Microseconds()) / 1000)
	if err != nil {
		m.storeErrors.Inc()
	}
}

// RecordEventsSeeded counts synthetic events written.
func (m *Manager) RecordEventsSeeded(n int) {
	m.eventsSeeded.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent records an error with component and type labels.
func (m *Manager) RecordErrorByComponent(component, errorType string) {
	m.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystem sets the memory and goroutine gauges.
func (m *Manager) UpdateSystem(memoryBytes uint64, goroutines int) {
	m.systemMemoryUsage.Set(float64(memoryBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
}

// Package-level helpers delegate to the global manager.

// Default returns the global manager.
func Default() *Manager { return globalManager }

// RecordTraining records a training run on the global manager.
func RecordTraining(family, activity, outcome string, d time.Duration) {
	globalManager.RecordTraining(family, activity, outcome, d)
}

// UpdateTrainingSamples sets the training set size on the global manager.
func UpdateTrainingSamples(family, activity string, n int) {
	globalManager.UpdateTrainingSamples(family, activity, n)
}

// UpdateModelQuality sets an evaluation metric on the global manager.
func UpdateModelQuality(family, activity, metric string, v float64) {
	globalManager.UpdateModelQuality(family, activity, metric, v)
}

// RecordPrediction records a prediction on the global manager.
func RecordPrediction(family, outcome string, d time.Duration) {
	globalManager.RecordPrediction(family, outcome, d)
}

// RecordModelLoad records a model load on the global manager.
func RecordModelLoad(family, outcome string) {
	globalManager.RecordModelLoad(family, outcome)
}

// RecordStoreQuery records an event store query on the global manager.
func RecordStoreQuery(d time.Duration, err error) {
	globalManager.RecordStoreQuery(d, err)
}

// RecordEventsSeeded records seeded events on the global manager.
func RecordEventsSeeded(n int) {
	globalManager.RecordEventsSeeded(n)
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordErrorByComponent records an error on the global manager.
func RecordErrorByComponent(component, errorType string) {
	globalManager.RecordErrorByComponent(component, errorType)
}

// UpdateSystem sets the system gauges on the global manager.
func UpdateSystem(memoryBytes uint64, goroutines int) {
	globalManager.UpdateSystem(memoryBytes, goroutines)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
