package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_messages_total",
			Help: "Total number of messages handled by the pipeline, by action and outcome (count)",
		},
		[]string{"action", "status"},
	)

	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_processing_duration_ms",
			Help:    "End-to-end handling duration per message in milliseconds",
			Buckets: []float64{5, 10, 50, 100, 500, 1000, 2500, 5000, 10000, 15000, 30000},
		},
		[]string{"action", "status"},
	)

	ToxicityScores = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipeline_toxicity_score",
			Help:    "Distribution of toxicity scores assigned to updates (score)",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	ToxicMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_toxic_messages_total",
			Help: "Total number of updates flagged as toxic (count)",
		},
	)

	ScoreCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_cache_requests_total",
			Help: "Score cache lookups by result (count)",
		},
		[]string{"result"},
	)

	PublisherFilteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "publisher_filtered_total",
			Help: "Updates withheld from the output queue by the publish filter (count)",
		},
	)

	BrokerMessagesConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_consumed_total",
			Help: "Total number of deliveries received from the broker (count)",
		},
		[]string{"broker", "queue"},
	)

	BrokerMessagesPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_messages_published_total",
			Help: "Total number of messages published to the broker (count)",
		},
		[]string{"broker", "queue", "status"},
	)

	BrokerMessageSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_message_size_bytes",
			Help:    "Size of broker messages in bytes",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000, 500000},
		},
		[]string{"broker", "queue", "direction"},
	)

	BrokerPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "broker_publish_duration_ms",
			Help:    "Duration of publishing a message in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"broker", "queue"},
	)

	BrokerConnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broker_connect_attempts_total",
			Help: "Connection attempts made by the connection supervisor (count)",
		},
		[]string{"target", "result"},
	)

	WorkerPoolQueueSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_pool_queue_size",
			Help: "Jobs waiting for a worker (count)",
		},
		[]string{"pool"},
	)

	WorkerPoolActiveJobs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Jobs currently running (count)",
		},
		[]string{"pool"},
	)

	WorkerPoolWaitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_pool_wait_duration_ms",
			Help:    "Time a job waits in the queue before a worker picks it up in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"pool"},
	)

	DatabaseOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_operations_total",
			Help: "Total number of document store operations (count)",
		},
		[]string{"database", "operation", "status"},
	)

	DatabaseOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_operation_duration_ms",
			Help:    "Duration of document store operations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"database", "operation"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			MessagesProcessedTotal,
			ProcessingDuration,
			ToxicityScores,
			ToxicMessagesTotal,
			ScoreCacheRequestsTotal,
			PublisherFilteredTotal,
			BrokerMessagesConsumedTotal,
			BrokerMessagesPublishedTotal,
			BrokerMessageSizeBytes,
			BrokerPublishDuration,
			BrokerConnectAttemptsTotal,
			WorkerPoolQueueSize,
			WorkerPoolActiveJobs,
			WorkerPoolWaitDuration,
			DatabaseOperationsTotal,
			DatabaseOperationDuration,
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func ObserveMessage(action, status string, duration time.Duration) {
	MessagesProcessedTotal.WithLabelValues(action, status).Inc()
	ProcessingDuration.WithLabelValues(action, status).Observe(float64(duration.Milliseconds()))
}

func ObserveToxicity(score int, toxic bool) {
	ToxicityScores.Observe(float64(score))
	if toxic {
		ToxicMessagesTotal.Inc()
	}
}

func IncScoreCache(result string) {
	ScoreCacheRequestsTotal.WithLabelValues(result).Inc()
}

func IncPublisherFiltered() {
	PublisherFilteredTotal.Inc()
}

func IncMessagesConsumed(broker, queue string, sizeBytes int) {
	BrokerMessagesConsumedTotal.WithLabelValues(broker, queue).Inc()
	BrokerMessageSizeBytes.WithLabelValues(broker, queue, "in").Observe(float64(sizeBytes))
}

func ObservePublish(broker, queue, status string, sizeBytes int, duration time.Duration) {
	BrokerMessagesPublishedTotal.WithLabelValues(broker, queue, status).Inc()
	BrokerMessageSizeBytes.WithLabelValues(broker, queue, "out").Observe(float64(sizeBytes))
	BrokerPublishDuration.WithLabelValues(broker, queue).Observe(float64(duration.Milliseconds()))
}

func IncConnectAttempt(target, result string) {
	BrokerConnectAttemptsTotal.WithLabelValues(target, result).Inc()
}

func SetWorkerPoolQueueSize(pool string, size int) {
	WorkerPoolQueueSize.WithLabelValues(pool).Set(float64(size))
}

func AddWorkerPoolActive(pool string, delta float64) {
	WorkerPoolActiveJobs.WithLabelValues(pool).Add(delta)
}

func ObserveWorkerPoolWait(pool string, duration time.Duration) {
	WorkerPoolWaitDuration.WithLabelValues(pool).Observe(float64(duration.Milliseconds()))
}

func ObserveDatabaseOperation(database, operation, status string, duration time.Duration) {
	DatabaseOperationsTotal.WithLabelValues(database, operation, status).Inc()
	DatabaseOperationDuration.WithLabelValues(database, operation).Observe(float64(duration.Milliseconds()))
}
