// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// Package metrics exposes Prometheus instrumentation for the sync and
// digest jobs. Metrics are served at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Sync metrics

	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "circulate_sync_duration_seconds",
			Help:    "Duration of reconciliation runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_sync_records_total",
			Help: "Records classified per reconciliation run",
		},
		[]string{"category"}, // added, updated, unchanged, returned
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_sync_errors_total",
			Help: "Failed reconciliation runs",
		},
		[]string{"error_type"}, // fetch, auth, store, partial
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circulate_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful reconciliation run",
		},
	)

	// Fetch client metrics

	FetchRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "circulate_fetch_retries_total",
			Help: "Retry attempts made by the resilient fetch client",
		},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_fetch_failures_total",
			Help: "Terminal fetch failures by classification",
		},
		[]string{"kind"}, // timeout, network, status
	)

	// Circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circulate_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_circuit_breaker_requests_total",
			Help: "Requests through the circuit breaker by outcome",
		},
		[]string{"name", "outcome"}, // success, failure, rejected
	)

	// Digest metrics

	DigestDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circulate_digest_deliveries_total",
			Help: "Digest broadcast attempts by outcome",
		},
		[]string{"outcome"}, // sent, failed, empty
	)

	DigestLastSent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "circulate_digest_last_sent_timestamp_seconds",
			Help: "Unix timestamp of the last successful digest delivery",
		},
	)
)
