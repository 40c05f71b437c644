// Package metrics defines and registers all custom Prometheus metrics of the
// finance client agent. It is the single source of truth for metric names,
// labels, and help strings.
//
// Collectors are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "finance_client"

// ── Profile metrics ───────────────────────────────────────────────────────────

// ProfileSwitchesTotal counts changes of the resolved current profile.
// Label:
//   - reason: what caused the change ("fetch", "switch", "create", "delete")
var ProfileSwitchesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_switches_total",
		Help:      "Total number of current profile changes, by cause.",
	},
	[]string{"reason"},
)

// ProfileOperationErrorsTotal counts failed registry operations.
// Labels:
//   - operation: "fetch", "switch", "create", "update", "reload", "delete"
//   - reason: "not_found", "last_profile", "validation", "network", "other"
var ProfileOperationErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_operation_errors_total",
		Help:      "Total number of failed profile registry operations.",
	},
	[]string{"operation", "reason"},
)

// ── Refresh metrics ───────────────────────────────────────────────────────────

// RefreshSweepsTotal counts completed sweeps.
// Labels:
//   - trigger: "profile_switched" or "manual"
//   - result: "ok" or "partial_failure"
var RefreshSweepsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_sweeps_total",
		Help:      "Total number of refresh sweeps executed, by trigger and result.",
	},
	[]string{"trigger", "result"},
)

// RefreshTriggersDroppedTotal counts triggers dropped because a sweep was
// pending or in flight.
// Label:
//   - trigger: "profile_switched" or "manual"
var RefreshTriggersDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_triggers_dropped_total",
		Help:      "Total number of refresh triggers dropped by the mutual-exclusion guard.",
	},
	[]string{"trigger"},
)

// RefreshCallbackFailuresTotal counts failed refresh callbacks.
// Label:
//   - subscriber: the name the callback was registered with
var RefreshCallbackFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_callback_failures_total",
		Help:      "Total number of refresh callbacks that returned an error or panicked.",
	},
	[]string{"subscriber"},
)

// RefreshSweepDuration measures a sweep from start to all callbacks settled.
var RefreshSweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_sweep_duration_seconds",
		Help:      "Duration of a refresh sweep from start to all callbacks settled.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)

// RefreshSubscribers tracks the number of registered refresh callbacks.
var RefreshSubscribers = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "refresh_subscribers",
		Help:      "Current number of registered refresh callbacks.",
	},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestDuration measures calls to the REST finance backend.
// Labels:
//   - operation: client operation name (e.g. "list_profiles")
//   - status: HTTP status code, or "error" when no response was received
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of REST backend requests.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation", "status"},
)
