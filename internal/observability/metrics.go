package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Escalations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_escalations_total",
		Help: "Escalations applied, by resulting level and trigger (auto|manual)",
	}, []string{"level", "trigger"})

	EscalationTicks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_escalation_ticks_total",
		Help: "Scheduler ticks, by outcome (completed|skipped_lease|failed)",
	}, []string{"outcome"})

	EscalationTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "grievance_escalation_tick_duration_seconds",
		Help:    "Wall time of one escalation tick",
		Buckets: prometheus.DefBuckets,
	})

	TickIssuesEvaluated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "grievance_tick_issues_evaluated_total",
		Help: "Open issues evaluated by scheduler ticks",
	})

	AuditWriteFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_audit_write_failures_total",
		Help: "Failed audit writes, by target (store|mirror)",
	}, []string{"target"})

	Notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_notifications_total",
		Help: "Notification deliveries, by channel and outcome",
	}, []string{"channel", "outcome"})

	Assignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_assignments_total",
		Help: "Workload balancer selections, by outcome (assigned|fallback|none)",
	}, []string{"outcome"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_http_requests_total",
		Help: "HTTP requests served, by method, route and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "grievance_http_request_duration_seconds",
		Help:    "HTTP request latency, by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	HTTPErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grievance_http_errors_total",
		Help: "HTTP error responses, by route, method and error code",
	}, []string{"path", "method", "code"})
)

func init() {
	prometheus.MustRegister(Escalations)
	prometheus.MustRegister(EscalationTicks)
	prometheus.MustRegister(EscalationTickDuration)
	prometheus.MustRegister(TickIssuesEvaluated)
	prometheus.MustRegister(AuditWriteFailures)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(Assignments)
	prometheus.MustRegister(HTTPRequests)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPErrors)
}

// Metrics records HTTP level counters. A nil *Metrics is a no-op.
type Metrics struct{}

// NewMetrics returns the HTTP metrics recorder.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordRequest counts a served request and observes its latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError counts an error response by its domain error code.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	HTTPErrors.WithLabelValues(path, method, code).Inc()
}
