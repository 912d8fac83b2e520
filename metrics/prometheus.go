package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roomkit-io/roomkit/types"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// All collectors are registered lazily on first use so that constructing the
// collector never panics on duplicate registration in tests.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions   *prometheus.CounterVec
	lockAcquires       *prometheus.CounterVec
	lockExpirations    prometheus.Counter
	lockLosses         prometheus.Counter
	broadcastRetries   prometheus.Counter
	broadcastOutcomes  *prometheus.CounterVec
	presenceEvictions  prometheus.Counter
	activeCollabGauge  prometheus.Gauge
	cursorsDropped     *prometheus.CounterVec
	resyncs            *prometheus.CounterVec
	degradedGauge      prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer interface (uses prometheus.DefaultRegisterer if nil)
//   - namespace: Prometheus metrics namespace (defaults to "roomkit" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "roomkit"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "state_transitions_total",
			Help:      "Total session state transitions by from/to state.",
		}, []string{"from", "to"})

		p.lockAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "acquires_total",
			Help:      "Total lock acquire outcomes (granted, locked_by_other, request_failed).",
		}, []string{"outcome"})

		p.lockExpirations = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "expirations_total",
			Help:      "Total leases that lapsed without explicit release.",
		})

		p.lockLosses = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "lock",
			Name:      "losses_total",
			Help:      "Total held locks lost to renewal failure or takeover.",
		})

		p.broadcastRetries = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "edit",
			Name:      "broadcast_retries_total",
			Help:      "Total edit broadcast retry attempts.",
		})

		p.broadcastOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "edit",
			Name:      "broadcast_outcomes_total",
			Help:      "Final edit broadcast outcomes (success, failure, dropped).",
		}, []string{"result"})

		p.presenceEvictions = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "presence",
			Name:      "evictions_total",
			Help:      "Total presence records evicted for staleness.",
		})

		p.activeCollabGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "presence",
			Name:      "active_collaborators",
			Help:      "Current number of active collaborators in the room.",
		})

		p.cursorsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "cursor",
			Name:      "dropped_total",
			Help:      "Cursor updates dropped by reason (throttled, slow_subscriber).",
		}, []string{"reason"})

		p.resyncs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "reconnect",
			Name:      "resyncs_total",
			Help:      "Reconnection resync attempts by result (success, failure).",
		}, []string{"result"})

		p.degradedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "session",
			Name:      "degraded",
			Help:      "Degraded-mode status (1=degraded, 0=healthy).",
		})

		p.reg.MustRegister(p.stateTransitions)
		p.reg.MustRegister(p.lockAcquires)
		p.reg.MustRegister(p.lockExpirations)
		p.reg.MustRegister(p.lockLosses)
		p.reg.MustRegister(p.broadcastRetries)
		p.reg.MustRegister(p.broadcastOutcomes)
		p.reg.MustRegister(p.presenceEvictions)
		p.reg.MustRegister(p.activeCollabGauge)
		p.reg.MustRegister(p.cursorsDropped)
		p.reg.MustRegister(p.resyncs)
		p.reg.MustRegister(p.degradedGauge)
	})
}

// RecordStateTransition counts a session state transition.
func (p *PrometheusCollector) RecordStateTransition(from, to types.SessionState) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordLockAcquire counts an acquire outcome.
func (p *PrometheusCollector) RecordLockAcquire(granted bool, reason string) {
	p.ensureRegistered()
	outcome := "granted"
	if !granted {
		outcome = reason
	}
	p.lockAcquires.WithLabelValues(outcome).Inc()
}

// RecordLockExpired counts a lapsed lease.
func (p *PrometheusCollector) RecordLockExpired() {
	p.ensureRegistered()
	p.lockExpirations.Inc()
}

// RecordLockLost counts a held lock lost to renewal failure or takeover.
func (p *PrometheusCollector) RecordLockLost() {
	p.ensureRegistered()
	p.lockLosses.Inc()
}

// RecordBroadcastRetry counts one broadcast retry attempt.
func (p *PrometheusCollector) RecordBroadcastRetry() {
	p.ensureRegistered()
	p.broadcastRetries.Inc()
}

// RecordBroadcastOutcome counts a final broadcast outcome.
func (p *PrometheusCollector) RecordBroadcastOutcome(result string) {
	p.ensureRegistered()
	p.broadcastOutcomes.WithLabelValues(result).Inc()
}

// RecordPresenceEviction counts a staleness eviction.
func (p *PrometheusCollector) RecordPresenceEviction() {
	p.ensureRegistered()
	p.presenceEvictions.Inc()
}

// SetActiveCollaborators sets the active-collaborator gauge.
func (p *PrometheusCollector) SetActiveCollaborators(count int) {
	p.ensureRegistered()
	p.activeCollabGauge.Set(float64(count))
}

// RecordCursorDropped counts a dropped cursor update by reason.
func (p *PrometheusCollector) RecordCursorDropped(reason string) {
	p.ensureRegistered()
	p.cursorsDropped.WithLabelValues(reason).Inc()
}

// RecordResync counts a resync attempt by result.
func (p *PrometheusCollector) RecordResync(result string) {
	p.ensureRegistered()
	p.resyncs.WithLabelValues(result).Inc()
}

// SetDegraded sets the degraded-mode gauge.
func (p *PrometheusCollector) SetDegraded(degraded bool) {
	p.ensureRegistered()
	if degraded {
		p.degradedGauge.Set(1)
	} else {
		p.degradedGauge.Set(0)
	}
}
