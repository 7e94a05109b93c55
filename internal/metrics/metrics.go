// kteeth - session, token, and OAuth authentication backend
// SPDX-License-Identifier: MIT

// Package metrics defines the Prometheus instrumentation for kteeth:
// HTTP latency and throughput, authentication outcomes per scheme,
// token issuance and verification, JWKS refreshes, session lifecycle,
// and MySQL pool state.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kteeth_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_http_requests_in_flight",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	// Authentication metrics
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_auth_attempts_total",
			Help: "Total authentication attempts by scheme and outcome",
		},
		[]string{"scheme", "outcome"}, // outcome: success, failure, no_credentials
	)

	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_tokens_issued_total",
			Help: "Total JWTs issued by signing algorithm",
		},
		[]string{"algorithm"},
	)

	TokenVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_token_verifications_total",
			Help: "Total JWT verification results",
		},
		[]string{"outcome"}, // valid, expired, invalid
	)

	JWKSRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_jwks_refreshes_total",
			Help: "Total JWKS fetches by result",
		},
		[]string{"result"}, // success, error, rate_limited, stale_served
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_sessions_active",
			Help: "Current number of live sessions",
		},
	)

	SessionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_session_operations_total",
			Help: "Total session store operations",
		},
		[]string{"operation", "result"},
	)

	// OAuth metrics
	OAuthExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kteeth_oauth_exchanges_total",
			Help: "Total OAuth authorization code exchanges by result",
		},
		[]string{"result"}, // success, denied, error, breaker_open
	)

	// Database pool metrics, mirrored by the /health payload
	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_db_connections_active",
			Help: "Connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_db_connections_idle",
			Help: "Idle connections in the pool",
		},
	)

	DBConnectionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_db_connections_total",
			Help: "Open connections, active plus idle",
		},
	)

	DBWaitCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kteeth_db_wait_count",
			Help: "Cumulative number of waits for a free connection",
		},
	)

	UserQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kteeth_user_query_duration_seconds",
			Help:    "Duration of user repository queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordHTTPRequest updates the request counter and histogram.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordAuthAttempt updates the per-scheme authentication counter.
func RecordAuthAttempt(scheme, outcome string) {
	AuthAttempts.WithLabelValues(scheme, outcome).Inc()
}

// RecordPoolStats pushes pool gauges from a stats snapshot.
func RecordPoolStats(active, idle, total int, waitCount int64) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
	DBConnectionsTotal.Set(float64(total))
	DBWaitCount.Set(float64(waitCount))
}
