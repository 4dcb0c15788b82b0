// Package metrics holds the Prometheus collectors for the receiver. All
// methods are safe to call on a nil *Metrics, which disables collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "signal_receiver"

// Connection state gauge values.
const (
	StateIdle       = 0
	StateConnecting = 1
	StateConnected  = 2
	StateError      = 3
)

// Metrics is the set of receiver collectors.
type Metrics struct {
	registry *prometheus.Registry

	messagesReceived  *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	notifyErrors      *prometheus.CounterVec
	reconnectAttempts prometheus.Counter
	connectionState   prometheus.Gauge
	pollFetches       *prometheus.CounterVec
	pollBatchSize     prometheus.Gauge
	pollInterval      prometheus.Gauge
}

// New creates the collectors and registers them, plus the Go runtime and
// process collectors, on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Data messages accepted after normalization",
		}, []string{"mode"}),

		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Inbound frames ignored by the receiver",
		}, []string{"reason"}),

		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "signal_received events emitted",
		}, []string{"mode"}),

		notifyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "signal_received events the notifier failed to deliver",
		}, []string{"mode"}),

		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Websocket reconnection attempts after a failure",
		}),

		connectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connection_state",
			Help:      "Websocket state: 0 idle, 1 connecting, 2 connected, 3 error",
		}),

		pollFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "fetch_total",
			Help:      "REST receive calls by result",
		}, []string{"result"}),

		pollBatchSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "batch_size",
			Help:      "Size of the most recent non-empty batch",
		}),

		pollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "interval_seconds",
			Help:      "Current poll interval",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesReceived,
		m.framesDropped,
		m.notifications,
		m.notifyErrors,
		m.reconnectAttempts,
		m.connectionState,
		m.pollFetches,
		m.pollBatchSize,
		m.pollInterval,
	)
	return m
}

// Registry returns the registry to expose over HTTP.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) MessageReceived(mode string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(mode).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Notified(mode string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.notifyErrors.WithLabelValues(mode).Inc()
		return
	}
	m.notifications.WithLabelValues(mode).Inc()
}

func (m *Metrics) ReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) ConnectionState(v int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(v))
}

// PollFetch records one fetch; result is "ok", "empty" or "error".
func (m *Metrics) PollFetch(result string, batchSize int) {
	if m == nil {
		return
	}
	m.pollFetches.WithLabelValues(result).Inc()
	if batchSize > 0 {
		m.pollBatchSize.Set(float64(batchSize))
	}
}

func (m *Metrics) PollInterval(d time.Duration) {
	if m == nil {
		return
	}
	m.pollInterval.Set(d.Seconds())
}
