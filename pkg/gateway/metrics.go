// Copyright 2025 Certen Protocol

package gateway

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sandhi-labs/aapi-vac/pkg/envelope"
)

// Metrics collects the gateway's counters and latency observations:
// totals, per-action and per-actor breakdowns, a submit-latency histogram
// (cumulative sum and count; there is no rolling-window average), and an
// auth-denial counter.
type Metrics struct {
	total          prometheus.Counter
	success        prometheus.Counter
	failure        prometheus.Counter
	authDenials    prometheus.Counter
	byAction       *prometheus.CounterVec
	byActor        *prometheus.CounterVec
	submitDuration prometheus.Histogram
}

// NewMetrics registers the gateway's counters against reg. Passing
// prometheus.NewRegistry() keeps metrics isolated per test; passing
// prometheus.DefaultRegisterer wires them into the process-wide /metrics
// endpoint.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		total: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aapi_gateway_envelopes_total",
			Help: "Total envelopes submitted to the gateway pipeline.",
		}),
		success: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aapi_gateway_envelopes_success_total",
			Help: "Envelopes whose receipt reason was success or partial-success.",
		}),
		failure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aapi_gateway_envelopes_failure_total",
			Help: "Envelopes whose receipt reason was a denial or error.",
		}),
		authDenials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aapi_gateway_authorization_denials_total",
			Help: "Envelopes rejected for a missing or invalid signature or capability.",
		}),
		byAction: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aapi_gateway_envelopes_by_action_total",
			Help: "Envelopes submitted, broken down by action name.",
		}, []string{"action"}),
		byActor: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aapi_gateway_envelopes_by_actor_total",
			Help: "Envelopes submitted, broken down by actor principal id.",
		}, []string{"actor"}),
		submitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aapi_gateway_submit_duration_seconds",
			Help:    "Wall-clock time to carry one envelope through the pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.total, m.success, m.failure, m.authDenials, m.byAction, m.byActor, m.submitDuration)
	}
	return m
}

// RecordOutcome records one completed pipeline pass.
func (m *Metrics) RecordOutcome(action, actor string, reason envelope.ReasonCode, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.total.Inc()
	m.byAction.WithLabelValues(action).Inc()
	m.byActor.WithLabelValues(actor).Inc()
	m.submitDuration.Observe(elapsed.Seconds())

	if reason.IsSuccess() {
		m.success.Inc()
	} else {
		m.failure.Inc()
	}
	if reason == envelope.ReasonAuthorizationDenied || reason == envelope.ReasonScopeViolation {
		m.authDenials.Inc()
	}
}

// RecordValidationFailure records an envelope rejected before it could be
// persisted, so it never reaches RecordOutcome.
func (m *Metrics) RecordValidationFailure() {
	if m == nil {
		return
	}
	m.total.Inc()
	m.failure.Inc()
}
