package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the report service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ReportsSubmitted *prometheus.CounterVec
	ReportsFailed    *prometheus.CounterVec
	AccessDenied     prometheus.Counter
	RateLimited      prometheus.Counter
	DailyTabsCreated prometheus.Counter
	SubmitDuration   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReportsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_submitted_total",
				Help: "Delivery reports appended to the daily tab",
			},
			[]string{"status"},
		),
		ReportsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_failed_total",
				Help: "Delivery reports that were not written",
			},
			[]string{"reason"},
		),
		AccessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "access_denied_total",
			Help: "Requests rejected by the access token check",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-client rate limit",
		}),
		DailyTabsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daily_tabs_created_total",
			Help: "Daily tabs created by this process",
		}),
		SubmitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "report_submit_duration_seconds",
			Help:    "Time spent locating the tab and appending the row",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ReportsSubmitted, m.ReportsFailed, m.AccessDenied, m.RateLimited, m.DailyTabsCreated, m.SubmitDuration)
	}
	return m
}

func (m *Metrics) Submitted(status string, took time.Duration) {
	if m == nil {
		return
	}
	m.ReportsSubmitted.WithLabelValues(status).Inc()
	m.SubmitDuration.Observe(took.Seconds())
}

func (m *Metrics) Failed(reason string) {
	if m == nil {
		return
	}
	m.ReportsFailed.WithLabelValues(reason).Inc()
}

func (m *Metrics) Denied() {
	if m == nil {
		return
	}
	m.AccessDenied.Inc()
}

func (m *Metrics) Limited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) TabCreated() {
	if m == nil {
		return
	}
	m.DailyTabsCreated.Inc()
}
