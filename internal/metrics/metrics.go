package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tally_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	LedgerOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_ledger_operations_total",
			Help: "Ledger operations by outcome code",
		},
		[]string{"operation", "code"},
	)

	LedgerConflictRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_ledger_conflict_retries_total",
			Help: "Read-modify-write cycles re-run after a version conflict",
		},
		[]string{"operation"},
	)

	StorageRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_storage_retries_total",
			Help: "Storage round-trips retried after a transient failure",
		},
	)

	WebhooksEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_webhooks_enqueued_total",
			Help: "Webhook tasks handed to the queue",
		},
		[]string{"event", "status"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordLedgerOperation counts one finished store operation; code is "OK" or an error code.
func RecordLedgerOperation(operation, code string) {
	LedgerOperationsTotal.WithLabelValues(operation, code).Inc()
}

func RecordConflictRetry(operation string) {
	LedgerConflictRetriesTotal.WithLabelValues(operation).Inc()
}

func RecordStorageRetry() {
	StorageRetriesTotal.Inc()
}

func RecordWebhook(event, status string) {
	WebhooksEnqueuedTotal.WithLabelValues(event, status).Inc()
}
