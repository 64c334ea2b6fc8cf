// Copyright (C) 2025 Varsity AI (engineering@varsityai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides metrics and instrumentation for the orchestrator.
//
// # Description
//
// This package implements Prometheus metrics for monitoring turn processing.
// Metrics include:
//   - Turn counters (by path and status)
//   - Record lookup counters and latency histograms (by tool)
//   - Retrieval retry counters
//   - Escalation counters
//   - Classification counters (by intent)
//   - Active turn gauges
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "varsity"

// Subsystem for orchestrator metrics
const orchestratorSubsystem = "orchestrator"

// TurnMetrics holds all Prometheus metrics for turn processing.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring query
// orchestration. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type TurnMetrics struct {
	// TurnsTotal counts processed turns by routing path and outcome.
	// Labels: path (refuse, rag_only, rag_plus_tools), status (success, error)
	TurnsTotal *prometheus.CounterVec

	// TurnDurationSeconds measures total turn processing time.
	// Labels: path
	TurnDurationSeconds *prometheus.HistogramVec

	// ToolInvocationsTotal counts record lookups by tool and outcome.
	// Labels: tool, status (ok, failed)
	ToolInvocationsTotal *prometheus.CounterVec

	// ToolDurationSeconds measures record lookup latency.
	// Labels: tool
	ToolDurationSeconds *prometheus.HistogramVec

	// RetrievalRetriesTotal counts knowledge base search retries.
	RetrievalRetriesTotal prometheus.Counter

	// EscalationsTotal counts turns handed off for human follow-up.
	// Labels: reason (tool_failure, deflection, synthesis_failure, short_answer)
	EscalationsTotal *prometheus.CounterVec

	// ClassificationsTotal counts query classifications.
	// Labels: intent (public-information, personal-information, ambiguous)
	ClassificationsTotal *prometheus.CounterVec

	// ActiveTurns tracks turns currently being processed.
	ActiveTurns prometheus.Gauge
}

// DefaultMetrics is the singleton instance of TurnMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *TurnMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
func InitMetrics() *TurnMetrics {
	DefaultMetrics = &TurnMetrics{
		TurnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "turns_total",
				Help:      "Total number of processed turns by path and status",
			},
			[]string{"path", "status"},
		),

		TurnDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "turn_duration_seconds",
				Help:      "Total turn processing time in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"path"},
		),

		ToolInvocationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "tool_invocations_total",
				Help:      "Total record lookups by tool and status",
			},
			[]string{"tool", "status"},
		),

		ToolDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "tool_duration_seconds",
				Help:      "Record lookup latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"tool"},
		),

		RetrievalRetriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "retrieval_retries_total",
				Help:      "Total knowledge base search retries",
			},
		),

		EscalationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "escalations_total",
				Help:      "Total turns escalated for human follow-up by reason",
			},
			[]string{"reason"},
		),

		ClassificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "classifications_total",
				Help:      "Total query classifications by intent",
			},
			[]string{"intent"},
		),

		ActiveTurns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: orchestratorSubsystem,
				Name:      "active_turns",
				Help:      "Number of turns currently being processed",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Escalation Reasons
// =============================================================================

// EscalationReason categorizes why a turn was escalated.
type EscalationReason string

const (
	// ReasonToolFailure indicates a record lookup failed or timed out.
	ReasonToolFailure EscalationReason = "tool_failure"

	// ReasonDeflection indicates the reply dodged the question.
	ReasonDeflection EscalationReason = "deflection"

	// ReasonSynthesisFailure indicates the model produced no usable reply.
	ReasonSynthesisFailure EscalationReason = "synthesis_failure"

	// ReasonShortAnswer indicates the reply was too short to be an answer.
	ReasonShortAnswer EscalationReason = "short_answer"
)

// =============================================================================
// Helper Methods
// =============================================================================

// RecordTurn records a completed turn.
func (m *TurnMetrics) RecordTurn(path string, success bool, seconds float64) {
	status := "success"
	if !success {
		status = "error"
	}
	m.TurnsTotal.WithLabelValues(path, status).Inc()
	m.TurnDurationSeconds.WithLabelValues(path).Observe(seconds)
}

// RecordToolInvocation records one record lookup.
func (m *TurnMetrics) RecordToolInvocation(tool, status string, seconds float64) {
	m.ToolInvocationsTotal.WithLabelValues(tool, status).Inc()
	m.ToolDurationSeconds.WithLabelValues(tool).Observe(seconds)
}

// RecordRetrievalRetry increments the retrieval retry counter.
func (m *TurnMetrics) RecordRetrievalRetry() {
	m.RetrievalRetriesTotal.Inc()
}

// RecordClassification increments the classification counter for an intent.
func (m *TurnMetrics) RecordClassification(intent string) {
	m.ClassificationsTotal.WithLabelValues(intent).Inc()
}

// RecordEscalation increments the escalation counter.
func (m *TurnMetrics) RecordEscalation(reason EscalationReason) {
	m.EscalationsTotal.WithLabelValues(string(reason)).Inc()
}

// TurnStarted increments the active turns gauge.
func (m *TurnMetrics) TurnStarted() {
	m.ActiveTurns.Inc()
}

// TurnEnded decrements the active turns gauge.
func (m *TurnMetrics) TurnEnded() {
	m.ActiveTurns.Dec()
}
