// Package metrics holds the Prometheus collectors of the account service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for auth operations.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// AuthOperations counts Auth Service calls by operation and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var AuthOperations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tubeaccounts_auth_operations_total",
		Help: "Total number of auth operations",
	},
	[]string{"operation", "outcome"},
)

// HTTPRequests counts served requests by route template and status code.
var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "tubeaccounts_http_requests_total",
		Help: "Total number of HTTP requests",
	},
	[]string{"method", "route", "status"},
)

// HTTPDuration observes request latency by route template.
var HTTPDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "tubeaccounts_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

// RegisterMetrics registers the collectors with reg.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AuthOperations)
	reg.MustRegister(HTTPRequests)
	reg.MustRegister(HTTPDuration)
}

func RecordAuthOperation(operation, outcome string) {
	AuthOperations.WithLabelValues(operation, outcome).Inc()
}

func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, route, status).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
