// Package metrics defines the Prometheus metrics zonewarden exposes for
// request authentication, zone repository operations, and reverse-zone
// validation outcomes.
package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// HTTP metrics (RED: Rate, Errors, Duration).
var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewarden_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration observes request latency in seconds by method and path.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zonewarden_http_request_duration_seconds",
			Help:    "Request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Authentication metrics.
var (
	// AuthOutcomesTotal counts authenticator results by outcome kind
	// ("authenticated", "credentials_missing", "credentials_rejected").
	AuthOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewarden_auth_outcomes_total",
			Help: "Authenticator outcomes by kind",
		},
		[]string{"outcome"},
	)

	// AuthInfraFaultsTotal counts infrastructural faults raised while
	// authenticating (principal-provider I/O, crypto algebra errors).
	AuthInfraFaultsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zonewarden_auth_infra_faults_total",
			Help: "Infrastructural faults encountered during authentication",
		},
	)
)

// Zone repository metrics.
var (
	// ZoneRepositoryOpsTotal counts ZoneRepository calls by operation and
	// outcome ("ok", "not_found", "already_exists", "error").
	ZoneRepositoryOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewarden_zone_repository_ops_total",
			Help: "ZoneRepository operations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ZonesTotal is a gauge tracking the number of zones known to the
	// active repository backend.
	ZonesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "zonewarden_zones_total",
			Help: "Total zones tracked by the repository",
		},
	)
)

// Reverse-zone validation metrics.
var (
	// ReverseZoneDecisionsTotal counts PtrIsInZone decisions by result
	// ("ok", "invalid_request").
	ReverseZoneDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zonewarden_reverse_zone_decisions_total",
			Help: "PTR-in-zone decisions by result",
		},
		[]string{"result"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// This must be called explicitly (typically from main) so that metrics
// registration can be made conditional on configuration. It is safe to call
// multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			AuthOutcomesTotal,
			AuthInfraFaultsTotal,
			ZoneRepositoryOpsTotal,
			ZonesTotal,
			ReverseZoneDecisionsTotal,
		)
	})
}

// NormalizePath maps actual request paths to normalized path templates
// suitable for use as Prometheus metric labels. This avoids high-cardinality
// labels from individual zone names.
func NormalizePath(path string) string {
	switch path {
	case "/health":
		return "/health"
	case "/healthz":
		return "/healthz"
	case "/readyz":
		return "/readyz"
	case "/docs", "/docs/":
		return "/docs"
	case "/metrics":
		return "/metrics"
	case "/openapi.json":
		return "/openapi.json"
	case "/", "":
		return "/"
	}

	if strings.HasPrefix(path, "/docs") {
		return "/docs"
	}

	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "/"
	}
	segments := strings.Split(trimmed, "/")

	if segments[0] != "zones" {
		return "/" + segments[0]
	}
	switch len(segments) {
	case 1:
		return "/zones"
	case 2:
		return "/zones/{zoneId}"
	case 3:
		return "/zones/{zoneId}/acl"
	default:
		return "/zones/{zoneId}/acl/{ruleId}"
	}
}
