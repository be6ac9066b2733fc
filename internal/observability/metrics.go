package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stream_transcriber_active_sessions",
		Help: "Number of open streaming sessions",
	})

	totalSessions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_transcriber_sessions_total",
		Help: "Total number of streaming sessions opened",
	})

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_transcriber_session_duration_seconds",
		Help:    "Wall-clock duration of streaming sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
	})

	// Decode metrics
	decodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_transcriber_decode_requests_total",
		Help: "Total number of window decodes by trigger and outcome",
	}, []string{"trigger", "status"})

	decodeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stream_transcriber_decode_latency_seconds",
		Help:    "Recognition adapter latency per window in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Transcript metrics
	deltasEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_transcriber_deltas_total",
		Help: "Total number of non-empty transcript deltas emitted",
	})

	committedWords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_transcriber_committed_words_total",
		Help: "Total number of words committed to transcripts",
	})

	// Audio metrics
	audioSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_transcriber_audio_samples_total",
		Help: "Total audio samples ingested",
	})

	droppedSamples = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stream_transcriber_dropped_samples_total",
		Help: "Samples trimmed from session buffers before they were decoded at full context",
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_transcriber_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stream_transcriber_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_transcriber_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Egress metrics
	sinkPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_transcriber_sink_publish_total",
		Help: "Transcript events published to the egress sink",
	}, []string{"status"})
)

// SessionMetrics tracks metrics for a single streaming session
type SessionMetrics struct {
	sessionID   string
	startTime   time.Time
	decodeStart time.Time
	mu          sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart() {
	activeSessions.Inc()
	totalSessions.Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordDecodeStart records the dispatch of a window to the adapter
func (m *SessionMetrics) RecordDecodeStart() {
	m.mu.Lock()
	m.decodeStart = time.Now()
	m.mu.Unlock()
}

// RecordDecodeEnd records the outcome of a window decode
func (m *SessionMetrics) RecordDecodeEnd(trigger string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.decodeStart.IsZero() {
		decodeLatency.Observe(time.Since(m.decodeStart).Seconds())
		m.decodeStart = time.Time{}
	}

	status := "success"
	if !success {
		status = "error"
	}
	decodeRequests.WithLabelValues(trigger, status).Inc()
}

// RecordDelta records a committed transcript delta
func (m *SessionMetrics) RecordDelta(words int) {
	deltasEmitted.Inc()
	committedWords.Add(float64(words))
}

// RecordAudio records ingested and trimmed sample counts
func (m *SessionMetrics) RecordAudio(ingested, dropped int) {
	audioSamples.Add(float64(ingested))
	if dropped > 0 {
		droppedSamples.Add(float64(dropped))
	}
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	RecordError(errorType, component)
}

// RecordError records an error that is not tied to one session
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordSinkPublish records the outcome of an egress publish
func RecordSinkPublish(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	sinkPublishes.WithLabelValues(status).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
