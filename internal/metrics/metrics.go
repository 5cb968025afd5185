package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for the Caseline server.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Auth metrics.
	AuthFailuresTotal  *prometheus.CounterVec
	AuthSuccessesTotal *prometheus.CounterVec

	// Rate limiting metrics.
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Janitor (background sweep) metrics.
	JanitorSweepsTotal   *prometheus.CounterVec
	JanitorSweepDuration prometheus.Histogram
	JanitorTokensPurged  prometheus.Counter
	JanitorInvitesSwept  prometheus.Counter

	// Jira integration metrics.
	JiraRequestsTotal  *prometheus.CounterVec
	JiraRequestErrors  *prometheus.CounterVec
	JiraUpstreamDelay  *prometheus.HistogramVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseline_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPRequestSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseline_http_request_size_bytes",
			Help:    "HTTP request size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseline_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		AuthFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_auth_failures_total",
			Help: "Total number of authentication failures.",
		}, []string{"auth_type"}),

		AuthSuccessesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_auth_successes_total",
			Help: "Total number of successful authentications.",
		}, []string{"auth_type"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"purpose"}),

		JanitorSweepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_janitor_sweeps_total",
			Help: "Total number of janitor sweeps.",
		}, []string{"status"}),

		JanitorSweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseline_janitor_sweep_duration_seconds",
			Help:    "Duration of janitor sweep operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		JanitorTokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseline_janitor_tokens_purged_total",
			Help: "Total number of expired verification tokens purged.",
		}),

		JanitorInvitesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caseline_janitor_invites_expired_total",
			Help: "Total number of stale group invitations marked expired.",
		}),

		JiraRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_jira_requests_total",
			Help: "Total number of outbound Jira API requests.",
		}, []string{"operation", "status_code"}),

		JiraRequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caseline_jira_request_errors_total",
			Help: "Total number of Jira request errors by error type.",
		}, []string{"error_type"}),

		JiraUpstreamDelay: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "caseline_jira_upstream_duration_seconds",
			Help:    "Jira API request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "caseline_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	// Register all metrics.
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSize,
		m.HTTPResponseSize,
		m.AuthFailuresTotal,
		m.AuthSuccessesTotal,
		m.RateLimitRejectionsTotal,
		m.JanitorSweepsTotal,
		m.JanitorSweepDuration,
		m.JanitorTokensPurged,
		m.JanitorInvitesSwept,
		m.JiraRequestsTotal,
		m.JiraRequestErrors,
		m.JiraUpstreamDelay,
		m.ServerStartTime,
	)

	// Set server start time.
	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// IncAuthFailure increments the auth failure counter for the given auth type.
func (m *Metrics) IncAuthFailure(authType string) {
	m.AuthFailuresTotal.WithLabelValues(authType).Inc()
}

// IncAuthSuccess increments the auth success counter for the given auth type.
func (m *Metrics) IncAuthSuccess(authType string) {
	m.AuthSuccessesTotal.WithLabelValues(authType).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(purpose string) {
	m.RateLimitRejectionsTotal.WithLabelValues(purpose).Inc()
}

// IncJiraRequest increments the Jira request counter.
func (m *Metrics) IncJiraRequest(operation string, statusCode int) {
	m.JiraRequestsTotal.WithLabelValues(operation, fmt.Sprintf("%d", statusCode)).Inc()
}

// IncJiraError increments the Jira error counter with error type classification.
func (m *Metrics) IncJiraError(errorType string) {
	m.JiraRequestErrors.WithLabelValues(errorType).Inc()
}

// ObserveJiraDuration records an outbound Jira request duration.
func (m *Metrics) ObserveJiraDuration(operation string, seconds float64) {
	m.JiraUpstreamDelay.WithLabelValues(operation).Observe(seconds)
}

// ObserveJanitorSweep records the outcome and duration of a janitor sweep.
func (m *Metrics) ObserveJanitorSweep(status string, seconds float64) {
	m.JanitorSweepsTotal.WithLabelValues(status).Inc()
	m.JanitorSweepDuration.Observe(seconds)
}

// AddTokensPurged records the number of expired tokens removed in a sweep.
func (m *Metrics) AddTokensPurged(n int64) {
	m.JanitorTokensPurged.Add(float64(n))
}

// AddInvitesExpired records the number of invitations marked expired in a sweep.
func (m *Metrics) AddInvitesExpired(n int64) {
	m.JanitorInvitesSwept.Add(float64(n))
}
