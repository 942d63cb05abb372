// Package metrics provides Prometheus metrics for the naja record service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the naja service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer
	gatherer         prometheus.Gatherer

	// Framing metrics - byte stream to frame assembly
	framesAssembled   prometheus.Counter
	heartbeatsDropped prometheus.Counter
	residualBytes     prometheus.Gauge

	// Codec metrics - wire decode outcomes
	framesDecoded      prometheus.Counter
	framesMalformed    prometheus.Counter
	framesForeignTag   prometheus.Counter
	timestampFallbacks prometheus.Counter

	// Gate metrics - pending queue and prompt cycle
	gatePending     prometheus.Gauge
	gateDuplicates  prometheus.Counter
	gateFlushes     *prometheus.CounterVec
	promptsRequested prometheus.Counter

	// Store metrics - leaderboard and history retention
	leaderboardSubmits  prometheus.Counter
	leaderboardSkipped  prometheus.Counter
	leaderboardTrims    prometheus.Counter
	historyAppends      prometheus.Counter
	historyDuplicates   prometheus.Counter
	historyEvictions    prometheus.Counter
	storeWriteLatency   prometheus.Histogram

	// Commit pipeline metrics
	commitQueueSize   prometheus.Gauge
	commitErrors      prometheus.Counter
	commitLatency     prometheus.Histogram

	// Transport metrics
	connState     prometheus.Gauge
	bytesReceived prometheus.Counter

	// Capture journal metrics
	captureFrames prometheus.Counter
	captureBytes  prometheus.Counter

	// HTTP and stream metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	streamClients       prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry, customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "naja",
		subsystem:        "records",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
		gatherer:         prometheus.DefaultGatherer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is naturally long
	auto := promauto.With(m.registry)

	m.framesAssembled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_assembled_total",
		Help:      "Total number of complete frames produced by the assembler",
	})

	m.heartbeatsDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "heartbeats_dropped_total",
		Help:      "Total number of heartbeat payloads silently discarded",
	})

	m.residualBytes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "assembler_residual_bytes",
		Help:      "Bytes buffered in the assembler awaiting a frame delimiter",
	})

	m.framesDecoded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_decoded_total",
		Help:      "Total number of frames decoded into records",
	})

	m.framesMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_malformed_total",
		Help:      "Total number of frames rejected by the codec as malformed",
	})

	m.framesForeignTag = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "frames_foreign_tag_total",
		Help:      "Total number of frames skipped due to an unrecognized tag",
	})

	m.timestampFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "timestamp_fallbacks_total",
		Help:      "Total number of records whose timestamp was replaced with the local clock",
	})

	m.gatePending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gate_pending_frames",
		Help:      "Frames queued in the delivery gate awaiting name resolution",
	})

	m.gateDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "gate_duplicates_total",
		Help:      "Total number of duplicate frames dropped while awaiting input",
	})

	m.gateFlushes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "gate_flushes_total",
			Help:      "Total number of gate flushes by trigger (resolved, timeout)",
		},
		[]string{"trigger"},
	)

	m.promptsRequested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "prompts_requested_total",
		Help:      "Total number of player-name prompts emitted",
	})

	m.leaderboardSubmits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_submits_total",
		Help:      "Total number of records accepted into the leaderboard",
	})

	m.leaderboardSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_skipped_total",
		Help:      "Total number of failed-outcome records ignored by the leaderboard",
	})

	m.leaderboardTrims = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "leaderboard_trims_total",
		Help:      "Total number of rows trimmed beyond the leaderboard capacity",
	})

	m.historyAppends = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_appends_total",
		Help:      "Total number of records appended to the history log",
	})

	m.historyDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_duplicates_total",
		Help:      "Total number of history appends rejected as duplicate deliveries",
	})

	m.historyEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "history_evictions_total",
		Help:      "Total number of oldest rows evicted from the history log",
	})

	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_write_latency_milliseconds",
		Help:      "Store write transaction latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.commitQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_queue_size",
		Help:      "Current size of the commit queue between gate and stores",
	})

	m.commitErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_errors_total",
		Help:      "Total number of commit pipeline failures",
	})

	m.commitLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commit_latency_milliseconds",
		Help:      "End-to-end commit latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.connState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transport_state",
		Help:      "Transport connection state (0 idle, 1 connecting, 2 connected, 3 disconnected)",
	})

	m.bytesReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "transport_bytes_received_total",
		Help:      "Total bytes read from the transport",
	})

	m.captureFrames = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "capture_frames_total",
		Help:      "Total raw frames written to the capture journal",
	})

	m.captureBytes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "capture_bytes_total",
		Help:      "Total uncompressed bytes written to the capture journal",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.streamClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stream_clients",
		Help:      "Currently connected event-stream clients",
	})
}

// Handler returns an HTTP handler serving the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Handler returns the global metrics HTTP handler.
func Handler() http.Handler {
	return globalManager.Handler()
}

// Package-level helpers operating on the global manager.

func RecordFrameAssembled()     { globalManager.framesAssembled.Inc() }
func RecordHeartbeatDropped()   { globalManager.heartbeatsDropped.Inc() }
func UpdateResidualBytes(n int) { globalManager.residualBytes.Set(float64(n)) }

func RecordFrameDecoded()      { globalManager.framesDecoded.Inc() }
func RecordFrameMalformed()    { globalManager.framesMalformed.Inc() }
func RecordFrameForeignTag()   { globalManager.framesForeignTag.Inc() }
func RecordTimestampFallback() { globalManager.timestampFallbacks.Inc() }

func UpdateGatePending(n int)    { globalManager.gatePending.Set(float64(n)) }
func RecordGateDuplicate()       { globalManager.gateDuplicates.Inc() }
func RecordGateFlush(trigger string) {
	globalManager.gateFlushes.WithLabelValues(trigger).Inc()
}
func RecordPromptRequested() { globalManager.promptsRequested.Inc() }

func RecordLeaderboardSubmit()  { globalManager.leaderboardSubmits.Inc() }
func RecordLeaderboardSkipped() { globalManager.leaderboardSkipped.Inc() }
func RecordLeaderboardTrim()    { globalManager.leaderboardTrims.Inc() }
func RecordHistoryAppend()      { globalManager.historyAppends.Inc() }
func RecordHistoryDuplicate()   { globalManager.historyDuplicates.Inc() }
func RecordHistoryEviction()    { globalManager.historyEvictions.Inc() }
func RecordStoreWriteLatency(ms float64) {
	globalManager.storeWriteLatency.Observe(ms)
}

func UpdateCommitQueueSize(n int) { globalManager.commitQueueSize.Set(float64(n)) }
func RecordCommitError()          { globalManager.commitErrors.Inc() }
func RecordCommitLatency(ms float64) {
	globalManager.commitLatency.Observe(ms)
}

func UpdateConnState(state int)  { globalManager.connState.Set(float64(state)) }
func RecordBytesReceived(n int)  { globalManager.bytesReceived.Add(float64(n)) }

func RecordCaptureFrame(bytes int) {
	globalManager.captureFrames.Inc()
	globalManager.captureBytes.Add(float64(bytes))
}

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func UpdateStreamClients(n int) { globalManager.streamClients.Set(float64(n)) }
