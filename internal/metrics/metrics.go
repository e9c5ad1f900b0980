package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the webhook receiver
type Metrics struct {
	// Webhook intake
	EventsReceivedTotal  prometheus.Counter
	EventsAcceptedTotal  prometheus.Counter
	EventsRejectedTotal  prometheus.Counter
	EventsRateLimitTotal prometheus.Counter

	// GitHub side effect
	GitHubCommitsTotal       prometheus.Counter
	GitHubCommitErrorsTotal  prometheus.Counter
	GitHubCommitDurationSecs prometheus.Histogram

	// Fan-out sinks
	NotifyPublishesTotal     prometheus.Counter
	NotifyPublishErrorsTotal prometheus.Counter

	// Last event info
	LastEventTimestamp prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance backed by a private registry
func New() *Metrics {
	m := &Metrics{
		EventsReceivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_events_received_total",
			Help: "Total number of webhook requests received",
		}),
		EventsAcceptedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_events_accepted_total",
			Help: "Total number of commit events accepted and acted upon",
		}),
		EventsRejectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_events_rejected_total",
			Help: "Total number of webhook requests rejected as malformed or unauthorized",
		}),
		EventsRateLimitTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_events_rate_limited_total",
			Help: "Total number of webhook requests dropped by the rate limiter",
		}),

		GitHubCommitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_github_commits_total",
			Help: "Total number of successful manifest commits to GitHub",
		}),
		GitHubCommitErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_github_commit_errors_total",
			Help: "Total number of failed manifest commits to GitHub",
		}),
		GitHubCommitDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "prompthook_github_commit_duration_seconds",
			Help:    "Duration of GitHub contents-API commits in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),

		NotifyPublishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_notify_publishes_total",
			Help: "Total number of successful sink deliveries",
		}),
		NotifyPublishErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "prompthook_notify_publish_errors_total",
			Help: "Total number of failed sink deliveries after retries",
		}),

		LastEventTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "prompthook_last_event_timestamp_seconds",
			Help: "Unix timestamp of the last accepted commit event",
		}),
	}

	m.registry = prometheus.NewRegistry()
	m.registry.MustRegister(
		m.EventsReceivedTotal,
		m.EventsAcceptedTotal,
		m.EventsRejectedTotal,
		m.EventsRateLimitTotal,
		m.GitHubCommitsTotal,
		m.GitHubCommitErrorsTotal,
		m.GitHubCommitDurationSecs,
		m.NotifyPublishesTotal,
		m.NotifyPublishErrorsTotal,
		m.LastEventTimestamp,
	)

	return m
}

// Handler returns the /metrics exposition handler for the private registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordReceived records an incoming webhook request
func (m *Metrics) RecordReceived() {
	if m == nil {
		return
	}
	m.EventsReceivedTotal.Inc()
}

// RecordAccepted records an accepted commit event
func (m *Metrics) RecordAccepted() {
	if m == nil {
		return
	}
	m.EventsAcceptedTotal.Inc()
	m.LastEventTimestamp.SetToCurrentTime()
}

// RecordRejected records a rejected webhook request
func (m *Metrics) RecordRejected() {
	if m == nil {
		return
	}
	m.EventsRejectedTotal.Inc()
}

// RecordRateLimited records a rate-limited webhook request
func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.EventsRateLimitTotal.Inc()
}

// RecordGitHubCommit records a GitHub commit attempt
func (m *Metrics) RecordGitHubCommit(duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.GitHubCommitDurationSecs.Observe(duration.Seconds())
	if err != nil {
		m.GitHubCommitErrorsTotal.Inc()
		return
	}
	m.GitHubCommitsTotal.Inc()
}

// RecordNotifyPublish records a sink delivery attempt
func (m *Metrics) RecordNotifyPublish(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.NotifyPublishErrorsTotal.Inc()
		return
	}
	m.NotifyPublishesTotal.Inc()
}
