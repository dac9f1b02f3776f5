package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the wizard engine.
// Every method is safe on a nil receiver so components can run without metrics in tests.
type Metrics struct {
	// Gateway attempts by endpoint kind and outcome (ok, retry, protocol, exhausted)
	GatewayAttempts *prometheus.CounterVec

	// Full gateway request latency including retries
	GatewayLatency *prometheus.HistogramVec

	// Condition redirects by site
	ConditionRedirects *prometheus.CounterVec

	// Times the per-request redirect guard forced a render
	RedirectGuardTrips prometheus.Counter

	// Eligibility cache lookups by result (hit, miss)
	EligibilityCache *prometheus.CounterVec

	// Submissions by outcome (succeeded, failed, invalid)
	Submissions *prometheus.CounterVec

	// Notifications skipped or failed
	NotificationDrops *prometheus.CounterVec

	// HTTP request latency by route pattern and status class
	HTTPLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics. Call it once per process.
func New() *Metrics {
	return &Metrics{
		GatewayAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govcy_gateway_attempts_total",
			Help: "Outbound API attempts by endpoint kind and outcome",
		}, []string{"kind", "outcome"}),

		GatewayLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govcy_gateway_request_duration_seconds",
			Help:    "Duration of outbound API requests including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),

		ConditionRedirects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govcy_condition_redirects_total",
			Help: "Page condition redirects by site",
		}, []string{"site_id"}),

		RedirectGuardTrips: promauto.NewCounter(prometheus.CounterOpts{
			Name: "govcy_condition_redirect_guard_trips_total",
			Help: "Requests where the redirect depth limit forced the page to render",
		}),

		EligibilityCache: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govcy_eligibility_cache_lookups_total",
			Help: "Eligibility cache lookups by result",
		}, []string{"result"}),

		Submissions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govcy_submissions_total",
			Help: "Submission attempts by outcome",
		}, []string{"site_id", "outcome"}),

		NotificationDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "govcy_notification_drops_total",
			Help: "Notifications not delivered by reason",
		}, []string{"reason"}),

		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "govcy_http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

// IncrementGatewayAttempt records one outbound attempt.
func (m *Metrics) IncrementGatewayAttempt(kind, outcome string) {
	if m != nil {
		m.GatewayAttempts.WithLabelValues(kind, outcome).Inc()
	}
}

// ObserveGatewayLatency records the duration of a full gateway request.
func (m *Metrics) ObserveGatewayLatency(kind string, d time.Duration) {
	if m != nil {
		m.GatewayLatency.WithLabelValues(kind).Observe(d.Seconds())
	}
}

// IncrementConditionRedirect records a condition-driven redirect.
func (m *Metrics) IncrementConditionRedirect(siteID string) {
	if m != nil {
		m.ConditionRedirects.WithLabelValues(siteID).Inc()
	}
}

// IncrementRedirectGuardTrip records a forced render.
func (m *Metrics) IncrementRedirectGuardTrip() {
	if m != nil {
		m.RedirectGuardTrips.Inc()
	}
}

// IncrementEligibilityCache records a cache hit or miss.
func (m *Metrics) IncrementEligibilityCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.EligibilityCache.WithLabelValues(result).Inc()
}

// IncrementSubmission records a submission outcome.
func (m *Metrics) IncrementSubmission(siteID, outcome string) {
	if m != nil {
		m.Submissions.WithLabelValues(siteID, outcome).Inc()
	}
}

// IncrementNotificationDrop records a notification that was not delivered.
func (m *Metrics) IncrementNotificationDrop(reason string) {
	if m != nil {
		m.NotificationDrops.WithLabelValues(reason).Inc()
	}
}

// ObserveHTTPRequest records the latency of one inbound request.
func (m *Metrics) ObserveHTTPRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.HTTPLatency.WithLabelValues(method, route, status).Observe(d.Seconds())
	}
}
