// Package metrics exposes Prometheus collectors for provider calls, the HTTP API and the generation poller.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livevibe"

var (
	ProviderRequestsHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_requests",
			Help:      "Time taken by outbound provider requests",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation", "error"},
	)

	HTTPRequestsHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_requests",
			Help:      "Time taken to serve API requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method", "status"},
	)

	ProviderThrottledCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_throttled_total",
			Help:      "Requests delayed because the shared provider budget was exhausted",
		},
		[]string{"provider", "priority"},
	)

	GenerationOutcomeCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_outcomes_total",
			Help:      "Terminal outcomes of AI video generation tasks",
		},
		[]string{"status"},
	)

	PollerCycleHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poller_cycle_seconds",
			Help:      "Duration of one generation poller pass",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	CacheLookupsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Redis cache lookups by key group and result",
		},
		[]string{"group", "result"},
	)

	ExpiredSubscriptionsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Subscriptions moved to expired by the scheduler",
		},
	)

	RenewedSubscriptionsCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_renewed_total",
			Help:      "Square-billed subscriptions rolled into their next period by the scheduler",
		},
	)
)

// CollectProviderRequest records one outbound provider call
func CollectProviderRequest(provider, operation string, err error, start time.Time) {
	ProviderRequestsHistogram.
		WithLabelValues(provider, operation, errLabelValue(err)).
		Observe(time.Since(start).Seconds())
}

// CollectHTTPRequest records one served API request
func CollectHTTPRequest(route, method, status string, start time.Time) {
	HTTPRequestsHistogram.
		WithLabelValues(route, method, status).
		Observe(time.Since(start).Seconds())
}

func CollectThrottle(provider, priority string) {
	ProviderThrottledCounter.WithLabelValues(provider, priority).Inc()
}

// CollectCacheLookup records a cache hit, miss or error for a key group
func CollectCacheLookup(group, result string) {
	CacheLookupsCounter.WithLabelValues(group, result).Inc()
}

func CollectGenerationOutcome(status string) {
	GenerationOutcomeCounter.WithLabelValues(status).Inc()
}

func errLabelValue(err error) string {
	if err != nil {
		return "true"
	}
	return "false"
}
