// Package metric holds the Prometheus instruments, exposed on /metrics.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registrations counts registration attempts by business outcome:
	// created, already_registered, full, past, not_found, error.
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealintake_registrations_total",
		Help: "Meeting registration attempts by outcome",
	}, []string{"outcome"})

	// SlotLookups counts availability queries by form type.
	SlotLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealintake_slot_lookups_total",
		Help: "Availability lookups by form type",
	}, []string{"form_type"})

	// Jobs counts background task executions by terminal outcome.
	Jobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealintake_jobs_total",
		Help: "Background job runs by task and outcome",
	}, []string{"task", "outcome"})

	// ProviderErrors counts failed calendar provider calls by operation.
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dealintake_calendar_provider_errors_total",
		Help: "Calendar provider failures by operation",
	}, []string{"op"})
)
