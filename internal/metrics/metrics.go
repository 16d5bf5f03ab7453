package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts requests accepted into the pipeline, by route and
	// outcome (ok, auth_error, project_unknown, too_large, rate_limited,
	// read_error).
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrel_events_total",
			Help: "Total number of ingestion requests by route and status",
		},
		[]string{"route", "status"},
	)

	EventBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentrel_event_bytes_total",
			Help: "Total bytes of envelope/event bodies received",
		},
	)

	ItemsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrel_items_dropped_total",
			Help: "Normalized documents dropped before reaching the sink, by reason",
		},
		[]string{"reason"},
	)

	// BatchFlushTotal counts batcher flushes by trigger (size, timeout,
	// shutdown, manual).
	BatchFlushTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrel_batch_flush_total",
			Help: "Total number of batch flushes by trigger",
		},
		[]string{"trigger"},
	)

	BatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentrel_batch_size",
			Help:    "Number of documents handed to the indexer per flush",
			Buckets: prometheus.LinearBuckets(0, 20, 10),
		},
	)

	BufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentrel_buffer_depth",
			Help: "Current number of documents waiting in the batcher buffer",
		},
	)

	// NormalizationDuration times decode+transform+enrich for one event.
	NormalizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sentrel_normalization_duration_seconds",
			Help:    "Duration of event normalization in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	NormalizationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentrel_normalization_errors_total",
			Help: "Total number of normalization errors",
		},
	)

	IndexerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentrel_indexer_duration_seconds",
			Help:    "Duration of OpenSearch index operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	IndexerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrel_indexer_errors_total",
			Help: "Total number of OpenSearch indexing errors",
		},
		[]string{"operation"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentrel_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"client"},
	)

	// AcksPending/AcksCompleted track queue-backend acknowledgements handed
	// out by internal/ack, used only when use_celery is true (queue backend).
	AcksPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentrel_acks_pending",
			Help: "Number of queue submissions awaiting completion",
		},
	)

	AcksCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentrel_acks_completed_total",
			Help: "Total number of queue submissions that completed successfully",
		},
	)
)
