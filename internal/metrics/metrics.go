// Package metrics holds the Prometheus collectors of the API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "surgeryquote"

// Estimate email outcomes.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeParked  = "parked"
	OutcomeSkipped = "skipped"
)

var (
	SubmissionsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_created_total",
		Help:      "Submissions created, by whether an estimate email was scheduled.",
	}, []string{"scheduled"})

	EstimateEmails = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimate_emails_total",
		Help:      "Estimate email dispatch outcomes.",
	}, []string{"outcome"})

	EstimateContent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "estimate_content_total",
		Help:      "Estimate email bodies built, by source (generated or template).",
	}, []string{"source"})

	SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "estimate_sweep_duration_seconds",
		Help:      "Duration of estimate email sweeps.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected by a rate limiter, by scope.",
	}, []string{"scope"})

	CatalogCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "catalog_cache_requests_total",
		Help:      "Catalog cache lookups, by result (hit or miss).",
	}, []string{"result"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
