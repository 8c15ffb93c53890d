package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the loyalty collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	CodesGenerated  prometheus.Counter
	CodeValidations *prometheus.CounterVec // result=valid|invalid
	CodesPurged     prometheus.Counter
	CheckIns        prometheus.Counter
	PointsAwarded   *prometheus.CounterVec // source=welcome|checkin|manual
	PointsRedeemed  prometheus.Counter
	Redemptions     *prometheus.CounterVec // result=ok|insufficient|unavailable|not_found|error
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry that also carries the
// Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		CodesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "checkin_codes_generated_total",
			Help:      "Check-in codes minted.",
		}),
		CodeValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "checkin_code_validations_total",
			Help:      "Check-in code validation attempts by result.",
		}, []string{"result"}),
		CodesPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "checkin_codes_purged_total",
			Help:      "Expired check-in codes deleted by the janitor.",
		}),
		CheckIns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "checkins_total",
			Help:      "Successful customer check-ins.",
		}),
		PointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_awarded_total",
			Help:      "Points credited by source.",
		}, []string{"source"}),
		PointsRedeemed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "points_redeemed_total",
			Help:      "Points debited for rewards.",
		}),
		Redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "redemptions_total",
			Help:      "Reward redemption attempts by result.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	reg.MustRegister(
		m.CodesGenerated,
		m.CodeValidations,
		m.CodesPurged,
		m.CheckIns,
		m.PointsAwarded,
		m.PointsRedeemed,
		m.Redemptions,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CodeGenerated records a minted code.
func (m *Metrics) CodeGenerated() {
	if m != nil {
		m.CodesGenerated.Inc()
	}
}

// CodeValidated records a validation attempt.
func (m *Metrics) CodeValidated(valid bool) {
	if m == nil {
		return
	}
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.CodeValidations.WithLabelValues(result).Inc()
}

// CodesDeleted records janitor deletions.
func (m *Metrics) CodesDeleted(n int64) {
	if m != nil && n > 0 {
		m.CodesPurged.Add(float64(n))
	}
}

// CheckedIn records a successful check-in.
func (m *Metrics) CheckedIn() {
	if m != nil {
		m.CheckIns.Inc()
	}
}

// Awarded records points credited from source.
func (m *Metrics) Awarded(source string, points int) {
	if m != nil && points > 0 {
		m.PointsAwarded.WithLabelValues(source).Add(float64(points))
	}
}

// Redeemed records a redemption attempt and, on success, the points spent.
func (m *Metrics) Redeemed(result string, points int) {
	if m == nil {
		return
	}
	m.Redemptions.WithLabelValues(result).Inc()
	if points > 0 {
		m.PointsRedeemed.Add(float64(points))
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, method, status).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(seconds)
}
