// Package metrics provides Prometheus metrics for the input replay service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// delayBuckets covers inter-event playback delays in seconds.
var delayBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10} //nolint:gochecknoglobals // constant bucket layout

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Capture
	eventsCaptured    *prometheus.CounterVec
	eventsDropped     prometheus.Counter
	recordingsStarted prometheus.Counter
	recordingsSaved   prometheus.Counter
	recordingActive   prometheus.Gauge
	framesCaptured    prometheus.Counter
	frameErrors       prometheus.Counter

	// Playback
	playbacksStarted   prometheus.Counter
	playbacksFinished  *prometheus.CounterVec
	playbackActive     prometheus.Gauge
	eventsInjected     *prometheus.CounterVec
	injectionFailures  *prometheus.CounterVec
	playbackDelay      prometheus.Histogram
	playbackOversleep  prometheus.Histogram
	playbackDurationMs prometheus.Histogram

	// Storage
	storageOps     *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec
	storageLatency *prometheus.HistogramVec

	// Input feed queues and background workers
	queueEnqueued *prometheus.CounterVec
	queueRejected *prometheus.CounterVec
	queueDepth    *prometheus.GaugeVec
	workerErrors  *prometheus.CounterVec
	tasksActive   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "inputreplay",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	m.eventsCaptured = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_captured_total",
		Help:        "Input events appended to an active recording, by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.eventsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_dropped_total",
		Help:        "Input callbacks received while no recording was active",
		ConstLabels: constLabels,
	})

	m.recordingsStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recordings_started_total",
		Help:        "Recordings started",
		ConstLabels: constLabels,
	})

	m.recordingsSaved = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recordings_saved_total",
		Help:        "Recordings sealed and persisted",
		ConstLabels: constLabels,
	})

	m.recordingActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "recording_active",
		Help:        "1 while a recording is in progress",
		ConstLabels: constLabels,
	})

	m.framesCaptured = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "frames_captured_total",
		Help:        "Auxiliary frames captured during recordings",
		ConstLabels: constLabels,
	})

	m.frameErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "frame_errors_total",
		Help:        "Frame captures or frame writes that failed",
		ConstLabels: constLabels,
	})

	m.playbacksStarted = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playbacks_started_total",
		Help:        "Playbacks started",
		ConstLabels: constLabels,
	})

	m.playbacksFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playbacks_finished_total",
		Help:        "Playbacks finished, by outcome (completed, stopped)",
		ConstLabels: constLabels,
	}, []string{"outcome"})

	m.playbackActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playback_active",
		Help:        "1 while a playback loop is running",
		ConstLabels: constLabels,
	})

	m.eventsInjected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "events_injected_total",
		Help:        "Events successfully injected during playback, by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.injectionFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "injection_failures_total",
		Help:        "Events whose injection failed and were skipped, by kind",
		ConstLabels: constLabels,
	}, []string{"kind"})

	m.playbackDelay = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playback_delay_seconds",
		Help:        "Scaled inter-event delay requested by the scheduler",
		Buckets:     delayBuckets,
		ConstLabels: constLabels,
	})

	m.playbackOversleep = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playback_oversleep_seconds",
		Help:        "Actual wait minus requested delay (scheduler granularity)",
		Buckets:     delayBuckets,
		ConstLabels: constLabels,
	})

	m.playbackDurationMs = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "playback_duration_milliseconds",
		Help:        "Wall time of a playback run",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	})

	m.storageOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_operations_total",
		Help:        "Session store operations, by backend and operation",
		ConstLabels: constLabels,
	}, []string{"backend", "op"})

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_errors_total",
		Help:        "Session store operations that failed, by backend and operation",
		ConstLabels: constLabels,
	}, []string{"backend", "op"})

	m.storageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "storage_latency_milliseconds",
		Help:        "Session store operation latency",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"backend", "op"})

	m.queueEnqueued = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_enqueued_total",
		Help:        "Notifications accepted by an input queue, by queue",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.queueRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_rejected_total",
		Help:        "Notifications rejected by an input queue, by queue and reason",
		ConstLabels: constLabels,
	}, []string{"queue", "reason"})

	m.queueDepth = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_depth",
		Help:        "Notifications waiting in an input queue",
		ConstLabels: constLabels,
	}, []string{"queue"})

	m.workerErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_errors_total",
		Help:        "Handler errors or panics recovered by background workers, by worker",
		ConstLabels: constLabels,
	}, []string{"worker"})

	m.tasksActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "tasks_active",
		Help:        "Background tasks currently running",
		ConstLabels: constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "HTTP requests by endpoint, method and status",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_errors_total",
		Help:        "HTTP error responses by endpoint, method and error type",
		ConstLabels: constLabels,
	}, []string{"endpoint", "method", "error_type"})
}

// Capture.

func RecordEventCaptured(kind string) {
	if globalManager.enabled {
		globalManager.eventsCaptured.WithLabelValues(kind).Inc()
	}
}

func RecordEventDropped() {
	if globalManager.enabled {
		globalManager.eventsDropped.Inc()
	}
}

func RecordRecordingStarted() {
	if globalManager.enabled {
		globalManager.recordingsStarted.Inc()
		globalManager.recordingActive.Set(1)
	}
}

// RecordRecordingStopped clears the active gauge and counts a save when saved is true.
func RecordRecordingStopped(saved bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.recordingActive.Set(0)
	if saved {
		globalManager.recordingsSaved.Inc()
	}
}

func RecordFrameCaptured() {
	if globalManager.enabled {
		globalManager.framesCaptured.Inc()
	}
}

func RecordFrameError() {
	if globalManager.enabled {
		globalManager.frameErrors.Inc()
	}
}

// Playback.

func RecordPlaybackStarted() {
	if globalManager.enabled {
		globalManager.playbacksStarted.Inc()
		globalManager.playbackActive.Set(1)
	}
}

// RecordPlaybackFinished records the outcome ("completed" or "stopped") and run time.
func RecordPlaybackFinished(outcome string, elapsed time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.playbackActive.Set(0)
	globalManager.playbacksFinished.WithLabelValues(outcome).Inc()
	globalManager.playbackDurationMs.Observe(float64(elapsed.Milliseconds()))
}

func RecordEventInjected(kind string) {
	if globalManager.enabled {
		globalManager.eventsInjected.WithLabelValues(kind).Inc()
	}
}

func RecordInjectionFailure(kind string) {
	if globalManager.enabled {
		globalManager.injectionFailures.WithLabelValues(kind).Inc()
	}
}

// RecordPlaybackDelay observes a requested delay and how far the actual wait overshot it.
func RecordPlaybackDelay(requested, actual time.Duration) {
	if !globalManager.enabled {
		return
	}
	globalManager.playbackDelay.Observe(requested.Seconds())
	if over := actual - requested; over > 0 {
		globalManager.playbackOversleep.Observe(over.Seconds())
	}
}

// Storage.

// RecordStorageOp counts a store operation and its latency; failed marks an error.
func RecordStorageOp(backend, op string, latency time.Duration, failed bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.storageOps.WithLabelValues(backend, op).Inc()
	globalManager.storageLatency.WithLabelValues(backend, op).Observe(float64(latency.Milliseconds()))
	if failed {
		globalManager.storageErrors.WithLabelValues(backend, op).Inc()
	}
}

// Queues and workers.

func RecordQueueEnqueued(queue string, depth int) {
	if globalManager.enabled {
		globalManager.queueEnqueued.WithLabelValues(queue).Inc()
		globalManager.queueDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

// RecordQueueRejected counts a rejected notification; reason is closed, full or context_cancelled.
func RecordQueueRejected(queue, reason string) {
	if globalManager.enabled {
		globalManager.queueRejected.WithLabelValues(queue, reason).Inc()
	}
}

func UpdateQueueDepth(queue string, depth int) {
	if globalManager.enabled {
		globalManager.queueDepth.WithLabelValues(queue).Set(float64(depth))
	}
}

func RecordWorkerError(worker string) {
	if globalManager.enabled {
		globalManager.workerErrors.WithLabelValues(worker).Inc()
	}
}

// UpdateTasksActive adjusts the running task gauge by delta.
func UpdateTasksActive(delta int) {
	if globalManager.enabled {
		globalManager.tasksActive.Add(float64(delta))
	}
}

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordHTTPError counts an error response classified as client_error,
// not_found, conflict or server_error.
func RecordHTTPError(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
