package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reaction service
type Metrics struct {
	// Authentication metrics
	Logins        *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	QRLogins      *prometheus.CounterVec

	// Worker metrics
	WorkersStarted    prometheus.Counter
	WorkersStopped    prometheus.Counter
	WorkerDisconnects prometheus.Counter
	ActiveWorkers     prometheus.Gauge

	// Reaction metrics
	ReactionsSent    prometheus.Counter
	ReactionErrors   *prometheus.CounterVec
	ReactionsDropped prometheus.Counter
	ReactionDuration prometheus.Histogram
	RateLimits       prometheus.Counter

	// Store metrics
	StoreWrites prometheus.Counter
	StoreErrors *prometheus.CounterVec

	// Event metrics
	EventsPublished prometheus.Counter
	EventErrors     prometheus.Counter
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = NewMetrics()
	})
	return DefaultMetrics
}

func init() {
	GetDefaultMetrics()
}

// NewMetrics creates a new Metrics instance registered in the default registry
func NewMetrics() *Metrics {
	return &Metrics{
		Logins: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_service_logins_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		Verifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_service_verifications_total",
				Help: "Total number of verify and password attempts by result",
			},
			[]string{"result"},
		),
		QRLogins: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_service_qr_logins_total",
				Help: "Total number of QR login attempts by result",
			},
			[]string{"result"},
		),

		WorkersStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_workers_started_total",
			Help: "Total number of reaction workers started",
		}),
		WorkersStopped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_workers_stopped_total",
			Help: "Total number of reaction workers stopped or replaced",
		}),
		WorkerDisconnects: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_worker_disconnects_total",
			Help: "Total number of workers whose connection ended without a stop request",
		}),
		ActiveWorkers: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "reaction_service_active_workers",
			Help: "Current number of registered reaction workers",
		}),

		ReactionsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_reactions_sent_total",
			Help: "Total number of reactions sent",
		}),
		ReactionErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_service_reaction_errors_total",
				Help: "Total number of failed reactions by error type",
			},
			[]string{"error_type"},
		),
		ReactionsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_reactions_dropped_total",
			Help: "Total number of reactions dropped while waiting for the limiter",
		}),
		ReactionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "reaction_service_reaction_duration_seconds",
			Help:    "Duration of reaction requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		RateLimits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_rate_limits_total",
			Help: "Total number of FLOOD_WAIT responses from Telegram",
		}),

		StoreWrites: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_store_writes_total",
			Help: "Total number of control-state document writes",
		}),
		StoreErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reaction_service_store_errors_total",
				Help: "Total number of control-state document errors by operation",
			},
			[]string{"op"},
		),

		EventsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_events_published_total",
			Help: "Total number of lifecycle events published to Kafka",
		}),
		EventErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "reaction_service_event_errors_total",
			Help: "Total number of lifecycle events that failed to publish",
		}),
	}
}

// RecordLogin records a login attempt result
func (m *Metrics) RecordLogin(result string) {
	m.Logins.WithLabelValues(labelOrUnknown(result)).Inc()
}

// RecordVerification records a verify or password attempt result
func (m *Metrics) RecordVerification(result string) {
	m.Verifications.WithLabelValues(labelOrUnknown(result)).Inc()
}

// RecordQRLogin records a QR login attempt result
func (m *Metrics) RecordQRLogin(result string) {
	m.QRLogins.WithLabelValues(labelOrUnknown(result)).Inc()
}

// RecordWorkerStarted records a started worker
func (m *Metrics) RecordWorkerStarted() {
	m.WorkersStarted.Inc()
}

// RecordWorkerStopped records a stopped worker
func (m *Metrics) RecordWorkerStopped() {
	m.WorkersStopped.Inc()
}

// RecordWorkerDisconnect records a worker connection that ended on its own
func (m *Metrics) RecordWorkerDisconnect() {
	m.WorkerDisconnects.Inc()
}

// UpdateActiveWorkers updates the active workers gauge
func (m *Metrics) UpdateActiveWorkers(count int) {
	m.ActiveWorkers.Set(float64(count))
}

// RecordReaction records a sent reaction with duration
func (m *Metrics) RecordReaction(duration float64) {
	m.ReactionsSent.Inc()
	m.ReactionDuration.Observe(duration)
}

// RecordReactionError records a failed reaction with error type
func (m *Metrics) RecordReactionError(errorType string) {
	m.ReactionErrors.WithLabelValues(labelOrUnknown(errorType)).Inc()
}

// RecordReactionDropped records a reaction dropped by the limiter
func (m *Metrics) RecordReactionDropped() {
	m.ReactionsDropped.Inc()
}

// RecordRateLimit records a FLOOD_WAIT response
func (m *Metrics) RecordRateLimit() {
	m.RateLimits.Inc()
}

// RecordStoreWrite records a document write
func (m *Metrics) RecordStoreWrite() {
	m.StoreWrites.Inc()
}

// RecordStoreError records a document error for the given operation
func (m *Metrics) RecordStoreError(op string) {
	m.StoreErrors.WithLabelValues(labelOrUnknown(op)).Inc()
}

// RecordEvent records a published event
func (m *Metrics) RecordEvent() {
	m.EventsPublished.Inc()
}

// RecordEventError records a failed event publish
func (m *Metrics) RecordEventError() {
	m.EventErrors.Inc()
}

func labelOrUnknown(label string) string {
	if label == "" {
		return "unknown"
	}
	return label
}
