// Package metrics defines the custom Prometheus metrics of the fish supply
// API. HTTP request metrics come from the echoprometheus middleware; these
// cover resource operations and the audit pipeline.
//
// Metrics are registered with the default registry on package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fish_supply"

// ── Resource metrics ──────────────────────────────────────────────────────────

// ResourceOperationsTotal counts completed resource operations.
// Labels:
//   - entity: schema entity name (e.g. "stock")
//   - op: "create", "list", "get", "update", "delete" or "export"
//   - outcome: "ok", "validation", "conflict", "not_found", "invalid_id" or "error"
var ResourceOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "resource_operations_total",
		Help:      "Total number of resource operations, by entity, operation and outcome.",
	},
	[]string{"entity", "op", "outcome"},
)

// ResourceOperationDuration measures service time per operation.
var ResourceOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "resource_operation_duration_seconds",
		Help:      "Duration of resource operations from bind to response.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"entity", "op"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events leaving the dispatcher.
// Label:
//   - result: "recorded", "failed" or "dropped" (queue full)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of audit events, by result.",
	},
	[]string{"result"},
)

// AuditQueueDepth tracks pending events in each dispatcher worker channel.
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
