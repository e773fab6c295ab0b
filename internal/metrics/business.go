// SPDX-License-Identifier: MIT

// Package metrics exposes Prometheus business metrics for uploads,
// curation, analyses and reports.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_uploads_total",
		Help: "File uploads by purpose and outcome",
	}, []string{"purpose", "outcome"}) // outcome=stored|duplicate|rejected|error

	uploadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dmaic_uploaded_bytes_total",
		Help: "Bytes written to the file repository",
	})

	curationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_curations_total",
		Help: "Dataset curations by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	curatedRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dmaic_curated_rows",
		Help:    "Rows per curated dataset version",
		Buckets: prometheus.ExponentialBuckets(10, 10, 6),
	})

	analysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_analyses_total",
		Help: "Analyses by kind and outcome",
	}, []string{"kind", "outcome"}) // outcome=success|invalid|error|cached

	analysisDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dmaic_analysis_duration_seconds",
		Help:    "Analysis computation time",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_cache_lookups_total",
		Help: "Analysis cache lookups by result",
	}, []string{"result"}) // result=hit|miss

	reportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_reports_total",
		Help: "Generated reports by kind and format",
	}, []string{"kind", "format"})

	inboxEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_inbox_events_total",
		Help: "Drop-folder files by outcome",
	}, []string{"outcome"}) // outcome=ingested|failed|ignored

	projectPhaseTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_project_phase_transitions_total",
		Help: "Project phase advances by target phase",
	}, []string{"phase"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dmaic_circuit_breaker_state",
		Help: "Circuit breaker state per component (0=closed, 1=half-open, 2=open)",
	}, []string{"component"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dmaic_circuit_breaker_trips_total",
		Help: "Circuit breaker transitions to open by reason",
	}, []string{"component", "reason"})
)

func RecordUpload(purpose, outcome string, bytes int64) {
	uploadsTotal.WithLabelValues(purpose, outcome).Inc()
	if bytes > 0 {
		uploadedBytes.Add(float64(bytes))
	}
}

func RecordCuration(success bool, rows int) {
	if !success {
		curationsTotal.WithLabelValues("failure").Inc()
		return
	}
	curationsTotal.WithLabelValues("success").Inc()
	curatedRows.Observe(float64(rows))
}

func RecordAnalysis(kind, outcome string, d time.Duration) {
	analysesTotal.WithLabelValues(kind, outcome).Inc()
	if d > 0 {
		analysisDuration.WithLabelValues(kind).Observe(d.Seconds())
	}
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

func RecordReport(kind, format string) { reportsTotal.WithLabelValues(kind, format).Inc() }

func RecordInboxEvent(outcome string) { inboxEvents.WithLabelValues(outcome).Inc() }

func RecordPhaseTransition(phase string) { projectPhaseTransitions.WithLabelValues(phase).Inc() }

// SetCircuitBreakerState publishes the breaker state of component.
func SetCircuitBreakerState(component, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(component).Set(v)
}

func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
