// Package metrics defines and registers all custom Prometheus metrics of the
// administration backend. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation (promauto) and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admin"

// ── Dispatcher metrics ────────────────────────────────────────────────────────

// DispatchTotal counts requests by the dispatcher branch that answered them.
// Label:
//   - branch: "install", "reset_form", "asset", "login", "need_otp", "denied",
//     "redirect", "terminate", "user_error", "error", "render"
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dispatch_total",
		Help:      "Total number of dispatched page requests, by terminal branch.",
	},
	[]string{"branch"},
)

// HeartbeatRunsTotal counts heartbeat runs (every registered callback invoked once).
var HeartbeatRunsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "heartbeat_runs_total",
		Help:      "Total number of heartbeat workflow runs.",
	},
)

// ── Endpoint metrics ──────────────────────────────────────────────────────────

// EndpointCallsTotal counts API endpoint calls.
// Labels:
//   - package: endpoint package (e.g. "user")
//   - result: "ok", "no_result", "redirect", "install" or "error"
var EndpointCallsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "endpoint_calls_total",
		Help:      "Total number of API endpoint calls, by package and result.",
	},
	[]string{"package", "result"},
)

// EndpointDuration measures how long an endpoint call takes.
var EndpointDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "endpoint_duration_seconds",
		Help:      "Duration of API endpoint calls from binding to result.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
	[]string{"package"},
)

// ── Security metrics ──────────────────────────────────────────────────────────

// NonceVerificationsTotal counts CSRF token checks.
// Label:
//   - result: "valid" or "invalid"
var NonceVerificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "nonce_verifications_total",
		Help:      "Total number of CSRF nonce verifications, by result.",
	},
	[]string{"result"},
)

// AuthAttemptsTotal counts sign-in and second factor attempts.
// Labels:
//   - step: "password" or "otp"
//   - result: "ok" or "failed"
var AuthAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_attempts_total",
		Help:      "Total number of authentication attempts, by step and result.",
	},
	[]string{"step", "result"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the current number of audit events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditDroppedTotal counts audit events dropped because their worker queue was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped on a full queue.",
	},
)
