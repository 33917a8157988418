package google

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every gcpkit metric. It is separate from the default
// registry so nothing is exported unless the caller writes it out.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	requestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcpkit_requests_total",
			Help: "Total number of Google API calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	retryAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcpkit_retry_attempts_total",
			Help: "Total number of retried Google API calls by operation",
		},
		[]string{"op"},
	)

	retryExhaustedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcpkit_retry_exhausted_total",
			Help: "Total number of calls that failed after the retry budget was spent",
		},
		[]string{"op"},
	)

	pagesFetchedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcpkit_pages_fetched_total",
			Help: "Total number of list pages fetched by operation",
		},
		[]string{"op"},
	)

	pollsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcpkit_polls_total",
			Help: "Total number of status fetches made while waiting, by resource",
		},
		[]string{"resource"},
	)

	requestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcpkit_request_duration_seconds",
			Help:    "Duration of Google API calls including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
)

// WriteMetrics writes the registry in the node exporter textfile format.
func WriteMetrics(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
