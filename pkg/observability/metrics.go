package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JanitorScans counts per-record janitor decisions
	JanitorScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_janitor_transactions_total",
		Help: "Janitor decisions for UNDEFINED transactions",
	}, []string{
		"outcome", // repaired, canceled, deferred
	})

	// DuplicateSkips counts gateway calls suppressed by the duplicate guard
	DuplicateSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reconciler_duplicate_skips_total",
		Help: "Outbound gateway calls suppressed as duplicates",
	})

	// ReportLookups counts single-transaction report queries by result
	ReportLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_report_lookups_total",
		Help: "Single-transaction report lookups",
	}, []string{
		"result", // found, empty, unavailable
	})

	// GatewayCalls counts dispatched gateway calls by type and status
	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciler_gateway_calls_total",
		Help: "Outbound gateway calls by transaction type and outcome",
	}, []string{
		"transaction_type",
		"status", // PROCESSED, ERROR, UNDEFINED, skipped
	})
)
