package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hearthtask/notify-engine/internal/domain"
)

// Metrics groups all Prometheus instruments used across the engine.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MessagesSent     *prometheus.CounterVec
	AttemptsFailed   *prometheus.CounterVec
	SendLatency      *prometheus.HistogramVec
	Materialized     prometheus.Counter
	Deferred         *prometheus.CounterVec
	CallbackEvents   *prometheus.CounterVec
	QueueDepthHigh   prometheus.Gauge
	QueueDepthNormal prometheus.Gauge
	QueueDepthLow    prometheus.Gauge
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total number of successfully delivered messages.",
		}, []string{"channel"}),

		AttemptsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_attempts_failed_total",
			Help: "Total number of failed delivery attempts.",
		}, []string{"channel"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_send_seconds",
			Help:    "Provider call latency from dispatch to ack.",
			Buckets: prometheus.DefBuckets,
		}, []string{"channel"}),

		Materialized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rule_occurrences_materialized_total",
			Help: "Total scheduled messages created from recurring rules.",
		}),

		Deferred: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_deferred_total",
			Help: "Messages pushed to a later schedule_at instead of dispatched.",
		}, []string{"reason"}),

		CallbackEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delivery_callback_events_total",
			Help: "Provider callback events applied to the attempt log.",
		}, []string{"outcome"}),

		QueueDepthHigh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_high",
			Help: "Current number of jobs in the high-priority queue.",
		}),
		QueueDepthNormal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_normal",
			Help: "Current number of jobs in the normal-priority queue.",
		}),
		QueueDepthLow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "queue_depth_low",
			Help: "Current number of jobs in the low-priority queue.",
		}),
	}

	reg.MustRegister(
		m.MessagesSent,
		m.AttemptsFailed,
		m.SendLatency,
		m.Materialized,
		m.Deferred,
		m.CallbackEvents,
		m.QueueDepthHigh,
		m.QueueDepthNormal,
		m.QueueDepthLow,
	)

	return m
}

// WorkerHooks returns the metric callback functions expected by
// worker.MetricHooks. Centralises the prometheus observation calls so
// worker.go stays import-free.
func (m *Metrics) WorkerHooks() (
	onSent func(domain.Channel, time.Duration),
	onFailed func(domain.Channel),
) {
	onSent = func(ch domain.Channel, latency time.Duration) {
		m.MessagesSent.WithLabelValues(string(ch)).Inc()
		m.SendLatency.WithLabelValues(string(ch)).Observe(latency.Seconds())
	}
	onFailed = func(ch domain.Channel) {
		m.AttemptsFailed.WithLabelValues(string(ch)).Inc()
	}
	return
}

// DispatcherHooks returns the callbacks expected by dispatcher.Hooks.
func (m *Metrics) DispatcherHooks() (onMaterialized func(int), onDeferred func(string)) {
	onMaterialized = func(count int) {
		m.Materialized.Add(float64(count))
	}
	onDeferred = func(reason string) {
		m.Deferred.WithLabelValues(reason).Inc()
	}
	return
}

// TrackerHook returns the callback for applied delivery callback events.
func (m *Metrics) TrackerHook() func(domain.Outcome) {
	return func(outcome domain.Outcome) {
		m.CallbackEvents.WithLabelValues(string(outcome)).Inc()
	}
}
