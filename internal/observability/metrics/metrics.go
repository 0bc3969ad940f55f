// Package metrics provides Prometheus metrics for the voice paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oceanmic"

// Metrics holds all Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	// Session metrics
	SessionsStarted *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	AutoRestarts    prometheus.Counter
	RestartFailures prometheus.Counter
	StaleEvents     prometheus.Counter

	// Error metrics
	ErrorsSurfaced  *prometheus.CounterVec
	NoiseSuppressed *prometheus.CounterVec

	// Upload metrics
	Uploads       *prometheus.CounterVec
	UploadLatency prometheus.Histogram
	UploadBytes   prometheus.Counter
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of voice sessions that became active",
		}, []string{"mode"}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of currently active voice sessions",
		}),
		AutoRestarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auto_restarts_total",
			Help:      "Total number of scheduled recognition restarts after an unexpected end",
		}),
		RestartFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restart_failures_total",
			Help:      "Total number of restarts that failed or exceeded the restart bound",
		}),
		StaleEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_total",
			Help:      "Total number of recognition events dropped for a stale session token",
		}),

		ErrorsSurfaced: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_surfaced_total",
			Help:      "Total number of errors published to the host",
		}, []string{"kind"}),
		NoiseSuppressed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "noise_suppressed_total",
			Help:      "Total number of transient recognition errors swallowed",
		}, []string{"code"}),

		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of recording uploads by outcome",
		}, []string{"outcome"}),
		UploadLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_duration_seconds",
			Help:      "Duration of recording uploads in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		UploadBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Total audio bytes uploaded",
		}),
	}
}

func (m *Metrics) SessionStarted(mode string) {
	if m == nil {
		return
	}
	m.SessionsStarted.WithLabelValues(mode).Inc()
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) RestartScheduled() {
	if m == nil {
		return
	}
	m.AutoRestarts.Inc()
}

func (m *Metrics) RestartFailed() {
	if m == nil {
		return
	}
	m.RestartFailures.Inc()
}

func (m *Metrics) StaleEvent() {
	if m == nil {
		return
	}
	m.StaleEvents.Inc()
}

func (m *Metrics) ErrorSurfaced(kind string) {
	if m == nil {
		return
	}
	m.ErrorsSurfaced.WithLabelValues(kind).Inc()
}

func (m *Metrics) NoiseSwallowed(code string) {
	if m == nil {
		return
	}
	m.NoiseSuppressed.WithLabelValues(code).Inc()
}

// UploadFinished records one upload attempt.
func (m *Metrics) UploadFinished(outcome string, size int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Uploads.WithLabelValues(outcome).Inc()
	m.UploadLatency.Observe(elapsed.Seconds())
	m.UploadBytes.Add(float64(size))
}
